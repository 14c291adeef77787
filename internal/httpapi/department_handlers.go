package httpapi

import (
	"fmt"
	"net/http"

	"hrms.org/internal/department"
)

type createDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type updateDepartmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (a *API) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.departments.Create(r.Context(), department.Input{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/department/%d", d.ID))
	writeJSON(w, http.StatusCreated, d)
}

// handleListDepartments pages with ?skip=&limit= and returns {data, count}.
func (a *API) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := parseNonNegativeInt(q.Get("skip"), 0, "skip")
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := parseNonNegativeInt(q.Get("limit"), department.DefaultLimit, "limit")
	if err != nil {
		handleError(w, r, err)
		return
	}
	page, err := a.departments.List(r.Context(), skip, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.departments.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req updateDepartmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.departments.Update(r.Context(), id, department.Update{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.departments.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
