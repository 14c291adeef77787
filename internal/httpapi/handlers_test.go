package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"hrms.org/internal/auth"
	"hrms.org/internal/department"
	"hrms.org/internal/store/memory"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	rbac    *auth.RBACService
	t       *testing.T
}

// newTestAPI wires the API over the memory store with four accounts:
// alice (active, may create departments), bob (inactive), carol (active, no
// role) and root (superuser).
func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	hasher := auth.NewPasswordHasher(auth.SchemeBcrypt, 4)
	codec, err := auth.NewTokenCodec("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}
	svc, err := auth.NewService(store, hasher, codec)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	rbac, err := auth.NewRBACService(store, hasher)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	departments, err := department.NewService(store)
	if err != nil {
		t.Fatalf("department service: %v", err)
	}

	ctx := context.Background()
	createDept, err := rbac.CreatePermission(ctx, auth.PermissionInput{Resource: auth.ResourceDepartment, Action: "create"})
	if err != nil {
		t.Fatalf("create permission: %v", err)
	}
	hr, err := rbac.CreateRole(ctx, auth.RoleInput{Name: "HR", PermissionIDs: []int64{createDept.ID}})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	for _, in := range []auth.UserInput{
		{Username: "alice", Password: "alice-secret", RoleID: &hr.ID},
		{Username: "bob", Password: "bob-secret", Status: auth.StatusInactive, RoleID: &hr.ID},
		{Username: "carol", Password: "carol-secret"},
		{Username: "root", Password: "root-secret", IsSuperuser: true},
	} {
		if _, err := rbac.CreateUser(ctx, in); err != nil {
			t.Fatalf("create user %s: %v", in.Username, err)
		}
	}

	api := New(ReadyProbe{DB: store}, "test", svc, rbac, departments, WithLoginRateLimit(100, 100))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		rbac:    rbac,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, token)
}

func (c *apiClient) login(username, password string) *http.Response {
	c.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := c.client.PostForm(c.baseURL+"/login", form)
	if err != nil {
		c.t.Fatalf("login request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(username, password string) string {
	c.t.Helper()
	resp := c.login(username, password)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status for %s: %d", username, resp.StatusCode)
	}
	payload := decode[auth.Token](c.t, resp)
	if payload.AccessToken == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.AccessToken
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, code int, contains string) {
	t.Helper()
	if resp.StatusCode != code {
		resp.Body.Close()
		t.Fatalf("expected %d, got %d", code, resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, contains) {
		t.Fatalf("error %q does not contain %q", msg, contains)
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("expected request_id in error body")
	}
}

func TestLoginIssuesBearerToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.login("alice", "alice-secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["token_type"] != "bearer" {
		t.Fatalf("unexpected token_type: %v", body["token_type"])
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("expected access_token")
	}

	resp = api.get("/me", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected /me status: %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	if me["username"] != "alice" || me["status"] != auth.StatusActive {
		t.Fatalf("unexpected profile: %v", me)
	}
	if me["last_active"] == nil {
		t.Fatal("expected last_active to be recorded by login")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t)

	wrong := api.login("alice", "nope")
	if got := wrong.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", got)
	}
	expectError(t, wrong, http.StatusUnauthorized, "Incorrect username or password")

	unknown := api.login("mallory", "nope")
	if got := unknown.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", got)
	}
	expectError(t, unknown, http.StatusUnauthorized, "Incorrect username or password")
}

func TestLoginInactiveAccountIsLocked(t *testing.T) {
	api := newTestAPI(t)
	expectError(t, api.login("bob", "bob-secret"), http.StatusLocked, "Inactive user")

	// wrong password on an inactive account reveals nothing about its status
	expectError(t, api.login("bob", "wrong"), http.StatusUnauthorized, "Incorrect username or password")
}

func TestLoginRequiresFormFields(t *testing.T) {
	api := newTestAPI(t)
	expectError(t, api.login("", ""), http.StatusBadRequest, "required")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/department", map[string]any{"name": "Finance"}, "")
	if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", got)
	}
	expectError(t, resp, http.StatusUnauthorized, "Not authenticated")

	expectError(t, api.get("/me", nil, "garbage"), http.StatusUnauthorized, "Could not validate credentials")
	expectError(t, api.do(http.MethodPost, "/department", map[string]any{"name": "Finance"}, "garbage"),
		http.StatusUnauthorized, "Could not validate credentials")
}

func TestDepartmentPermissionGate(t *testing.T) {
	api := newTestAPI(t)
	carol := api.obtainToken("carol", "carol-secret")
	alice := api.obtainToken("alice", "alice-secret")
	root := api.obtainToken("root", "root-secret")

	expectError(t, api.do(http.MethodPost, "/department", map[string]any{"name": "Finance"}, carol),
		http.StatusForbidden, "Permission denied: create on department")

	resp := api.do(http.MethodPost, "/department", map[string]any{"name": "Finance"}, alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	created := decode[department.Department](t, resp)
	if created.ID == 0 || !created.IsActive {
		t.Fatalf("unexpected department: %+v", created)
	}

	// alice holds create only
	expectError(t, api.get("/department", nil, alice), http.StatusForbidden, "list on department")

	expectError(t, api.do(http.MethodPost, "/department", map[string]any{"name": "finance"}, root),
		http.StatusConflict, "")

	resp = api.get("/department", url.Values{"skip": {"0"}, "limit": {"10"}}, root)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	page := decode[department.Page](t, resp)
	if page.Count != 1 || len(page.Data) != 1 || page.Data[0].Name != "Finance" {
		t.Fatalf("unexpected page: %+v", page)
	}

	expectError(t, api.get("/department", url.Values{"skip": {"-1"}}, root), http.StatusBadRequest, "skip")
	expectError(t, api.get("/department/999", nil, root), http.StatusNotFound, "Department not found")

	resp = api.do(http.MethodDelete, "/department/"+strconv.FormatInt(created.ID, 10), nil, root)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected delete status: %d", resp.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("alice", "alice-secret")

	expectError(t, api.do(http.MethodPut, "/me/change-password", map[string]any{"password": "alice-secret"}, token),
		http.StatusBadRequest, "The password cannot be the same as the old one")
	expectError(t, api.do(http.MethodPut, "/me/change-password", map[string]any{"password": "short"}, token),
		http.StatusBadRequest, "Password must be at least 8 characters long.")
	expectError(t, api.do(http.MethodPut, "/me/change-password", map[string]any{"pw": "x"}, token),
		http.StatusBadRequest, "invalid request body")

	resp := api.do(http.MethodPut, "/me/change-password", map[string]any{"password": "brand-new-secret"}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["msg"] != "Your password has been changed successfully" {
		t.Fatalf("unexpected body: %v", body)
	}

	expectError(t, api.login("alice", "alice-secret"), http.StatusUnauthorized, "Incorrect username or password")
	api.obtainToken("alice", "brand-new-secret")
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthcheck", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if body := decode[map[string]any](t, resp); body["msg"] != "OK" {
		t.Fatalf("unexpected healthcheck body: %v", body)
	}

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("%s: expected X-Request-ID", path)
		}
	}

	expectError(t, api.get("/nowhere", nil, ""), http.StatusNotFound, "not found")
}

func TestRequirePermissionWithoutUser(t *testing.T) {
	a := &API{}
	handler := a.requirePermission(auth.ResourceRoles, auth.ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/roles/1", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		"Bearer":        false,
		"Bearer   ":     false,
		"Basic abc":     false,
		"Bearer abc":    true,
		"bearer abc":    true,
		"  Bearer abc ": true,
	}
	for header, ok := range cases {
		token, err := extractBearerToken(header)
		if ok && (err != nil || token != "abc") {
			t.Fatalf("%q: expected token abc, got %q (%v)", header, token, err)
		}
		if !ok && err == nil {
			t.Fatalf("%q: expected error", header)
		}
	}
}
