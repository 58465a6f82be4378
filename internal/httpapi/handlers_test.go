package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"crm-platform/internal/accounts"
	"crm-platform/internal/auth"
	"crm-platform/internal/calllog"
	"crm-platform/internal/clients"
	"crm-platform/internal/impersonation"
	"crm-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// identityMW injects a verified identity into the request context, standing in
// for the JWT middleware.
func identityMW(userID, orgID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, orgID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestHandlers(t *testing.T) (Handlers, *accounts.MemoryDirectory) {
	t.Helper()
	store, err := calllog.NewFileStore(filepath.Join(t.TempDir(), "calls.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	dir := accounts.NewMemoryDirectory()
	repo := clients.NewMemoryRepo()
	return Handlers{
		Calls:      calllog.NewLog(nil, store, nil),
		Importer:   clients.NewImporter(repo),
		ClientRepo: repo,
		Sessions:   impersonation.NewRegistry(dir, nil),
	}, dir
}

func TestAddAndListCalls(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.Use(identityMW("user-1", "org-1", rbac.RoleSubAccount))
	r.POST("/calls", h.AddCall)
	r.GET("/calls", h.ListCalls)

	body := `{"client_id":"client-1","phone_number":"+15550001111","outcome":"connected","duration":60}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/calls?client_id=client-1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var resp struct {
		Calls        []calllog.CallRecord `json:"calls"`
		RemoteActive bool                 `json:"remote_active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Calls) != 1 || resp.Calls[0].ClientID != "client-1" {
		t.Fatalf("unexpected calls: %+v", resp.Calls)
	}
	if resp.RemoteActive {
		t.Fatal("no remote configured, remote_active should be false")
	}
}

func TestAddCallRejectsInvalidOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.Use(identityMW("user-1", "org-1", rbac.RoleSubAccount))
	r.POST("/calls", h.AddCall)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{"client_id":"c","phone_number":"+1","outcome":"teleported"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateCallRejectsUnknownOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.Use(identityMW("user-1", "org-1", rbac.RoleSubAccount))
	r.POST("/calls", h.AddCall)
	r.PATCH("/calls/:call_id", h.UpdateCall)
	r.GET("/calls", h.ListCalls)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{"client_id":"c1","phone_number":"+1","outcome":"initiated"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", w.Code)
	}
	var rec calllog.CallRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/calls/"+rec.ID, strings.NewReader(`{"outcome":"garbage"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("patch: expected 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/calls", nil)
	r.ServeHTTP(w, req)
	var resp struct {
		Calls []calllog.CallRecord `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Calls) != 1 || resp.Calls[0].Outcome != calllog.OutcomeInitiated {
		t.Fatalf("record should be unchanged, got %+v", resp.Calls)
	}
}

func TestImpersonationScopesCallReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, dir := newTestHandlers(t)

	dir.AddProfile(accounts.Profile{ID: "p1", UserID: "user-42", OrganizationID: "org-7", Role: rbac.RoleSubAccount})
	dir.AddOrganization(accounts.Organization{ID: "org-7", OwnerID: "user-42"})

	r := gin.New()
	r.Use(identityMW("admin-1", "org-admin", rbac.RoleAdmin))
	r.GET("/me", h.Me)
	r.GET("/calls", h.ListCalls)
	r.POST("/calls", h.AddCall)
	r.POST("/admin/impersonate", h.ImpersonateEnter)
	r.DELETE("/admin/impersonate", h.ImpersonateExit)

	// enter impersonation
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/impersonate", strings.NewReader(`{"user_id":"user-42"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("impersonate: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// writes while impersonating land in org-7
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{"client_id":"c1","phone_number":"+1","outcome":"connected"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add while impersonating: expected 201, got %d", w.Code)
	}
	var rec calllog.CallRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.OrganizationID != "org-7" {
		t.Fatalf("record org = %q, want org-7", rec.OrganizationID)
	}
	if rec.CreatedBy != "admin-1" {
		t.Fatalf("created_by = %q, want the acting admin", rec.CreatedBy)
	}

	// /me reports the overlay
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	var me map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me["impersonating"] != true || me["effective_organization_id"] != "org-7" {
		t.Fatalf("unexpected /me: %v", me)
	}

	// exit restores the admin's own organization
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/admin/impersonate", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("exit: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/calls", nil)
	r.ServeHTTP(w, req)
	var resp struct {
		Calls []calllog.CallRecord `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Calls) != 0 {
		t.Fatalf("org-admin should not see org-7 calls after exit, got %+v", resp.Calls)
	}
}

func TestImpersonateEnterUnknownTarget(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.Use(identityMW("admin-1", "org-admin", rbac.RoleAdmin))
	r.POST("/admin/impersonate", h.ImpersonateEnter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/impersonate", strings.NewReader(`{"user_id":"ghost"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestImpersonateEnterDeniedForNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, dir := newTestHandlers(t)
	dir.AddProfile(accounts.Profile{ID: "p1", UserID: "user-42", OrganizationID: "org-7", Role: rbac.RoleSubAccount})
	dir.AddOrganization(accounts.Organization{ID: "org-7", OwnerID: "user-42"})

	r := gin.New()
	r.Use(identityMW("user-9", "org-9", rbac.RoleSubAccount))
	r.POST("/admin/impersonate", h.ImpersonateEnter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/impersonate", strings.NewReader(`{"user_id":"user-42"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestImportClientsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.Use(identityMW("user-1", "org-1", rbac.RoleSubAccount))
	r.POST("/clients/import", h.ImportClients)
	r.GET("/clients", h.ListClients)

	csv := "First Name,Last Name,Email 1,Phone 1\nAda,Lovelace,ada@example.com,+15550001111\n,,missing@example.com,\n"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/clients/import", strings.NewReader(csv))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary clients.ImportSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Imported != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 imported 1 failed", summary)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/clients", nil)
	r.ServeHTTP(w, req)
	var resp struct {
		Clients []clients.Client `json:"clients"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Clients) != 1 || resp.Clients[0].Email1 != "ada@example.com" {
		t.Fatalf("unexpected clients: %+v", resp.Clients)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.GET("/calls", h.ListCalls)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/calls", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
