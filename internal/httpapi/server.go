package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrms.org/internal/auth"
	"hrms.org/internal/department"
	"hrms.org/internal/obs"
)

const serviceName = "hrms-api"

// Pinger is implemented by the stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe is a readiness check backed by the store ping.
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// API is the HTTP layer.
type API struct {
	router      chi.Router
	readyProbe  readinessChecker
	version     string
	auth        *auth.Service
	rbac        *auth.RBACService
	departments *department.Service
	limiter     *RateLimiter
	rateBurst   int
	ratePerSec  int
	trustProxy  bool
}

type Option func(*API)

// WithTrustProxy makes the login limiter key clients on X-Forwarded-For.
func WithTrustProxy(trust bool) Option {
	return func(a *API) { a.trustProxy = trust }
}

// WithLoginRateLimit sets the per-IP token bucket on POST /login.
func WithLoginRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
	}
}

func New(rp readinessChecker, version string, authSvc *auth.Service, rbac *auth.RBACService, departments *department.Service, opts ...Option) *API {
	a := &API{
		router:      chi.NewRouter(),
		readyProbe:  rp,
		version:     version,
		auth:        authSvc,
		rbac:        rbac,
		departments: departments,
		rateBurst:   20,
		ratePerSec:  10,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}
	a.limiter = NewRateLimiter(a.rateBurst, a.ratePerSec, TrustForwardedFor(a.trustProxy))
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.Get("/healthcheck", a.Healthcheck)
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.With(a.limiter.Middleware, MaxBodyBytes(1<<16)).Post("/login", a.handleLogin)
	r.Get("/me", a.handleMe)

	r.Group(func(r chi.Router) {
		r.Use(a.authenticated, MaxBodyBytes(1<<20))

		r.Put("/me/change-password", a.handleChangePassword)

		r.Route("/roles", func(r chi.Router) {
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionCreate)).Post("/", a.handleCreateRole)
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionList)).Get("/", a.handleListRoles)
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionRead)).Get("/{id}", a.handleGetRole)
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionUpdate)).Put("/{id}", a.handleUpdateRole)
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionDelete)).Delete("/{id}", a.handleDeleteRole)
			r.With(a.requirePermission(auth.ResourceRoles, auth.ActionUpdate)).Put("/{id}/permissions", a.handleSetRolePermissions)
		})

		r.Route("/permission", func(r chi.Router) {
			r.With(a.requirePermission(auth.ResourcePermissions, auth.ActionCreate)).Post("/", a.handleCreatePermission)
			r.With(a.requirePermission(auth.ResourcePermissions, auth.ActionList)).Get("/", a.handleListPermissions)
			r.With(a.requirePermission(auth.ResourcePermissions, auth.ActionRead)).Get("/{id}", a.handleGetPermission)
			r.With(a.requirePermission(auth.ResourcePermissions, auth.ActionUpdate)).Put("/{id}", a.handleUpdatePermission)
			r.With(a.requirePermission(auth.ResourcePermissions, auth.ActionDelete)).Delete("/{id}", a.handleDeletePermission)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(a.requirePermission(auth.ResourceUsers, auth.ActionCreate)).Post("/", a.handleCreateUser)
			r.With(a.requirePermission(auth.ResourceUsers, auth.ActionList)).Get("/", a.handleListUsers)
			r.With(a.requirePermission(auth.ResourceUsers, auth.ActionUpdate)).Put("/{id}/role", a.handleAssignRole)
			r.With(a.requirePermission(auth.ResourceUsers, auth.ActionUpdate)).Put("/{id}/status", a.handleSetStatus)
		})

		r.Route("/department", func(r chi.Router) {
			r.With(a.requirePermission(auth.ResourceDepartment, auth.ActionCreate)).Post("/", a.handleCreateDepartment)
			r.With(a.requirePermission(auth.ResourceDepartment, auth.ActionList)).Get("/", a.handleListDepartments)
			r.With(a.requirePermission(auth.ResourceDepartment, auth.ActionRead)).Get("/{id}", a.handleGetDepartment)
			r.With(a.requirePermission(auth.ResourceDepartment, auth.ActionUpdate)).Put("/{id}", a.handleUpdateDepartment)
			r.With(a.requirePermission(auth.ResourceDepartment, auth.ActionDelete)).Delete("/{id}", a.handleDeleteDepartment)
		})
	})
}

// Handler returns the router wrapped in the shared middleware chain.
func (a *API) Handler() http.Handler {
	return RequestID(LoggingJSON(SecurityHeaders(CORS(obs.Instrument(a.router)))))
}

// Limiter exposes the login rate limiter so main can run its sweeper.
func (a *API) Limiter() *RateLimiter { return a.limiter }

// --- Handlers ---

func (a *API) Healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"msg": "OK"})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
