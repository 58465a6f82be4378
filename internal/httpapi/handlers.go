package httpapi

import (
	"errors"
	"net/http"
	"time"

	"crm-platform/internal/accounts"
	"crm-platform/internal/audit"
	"crm-platform/internal/auth"
	"crm-platform/internal/calllog"
	"crm-platform/internal/clients"
	"crm-platform/internal/impersonation"
	"crm-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Calls      *calllog.Log
	Importer   *clients.Importer
	ClientRepo clients.Repository
	Sessions   *impersonation.Registry
	Dialer     *telephony.Dialer
	Audit      *audit.Service
}

// identity is the caller extracted from the verified token.
type identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

func callerIdentity(c *gin.Context) (identity, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		return identity{}, false
	}
	org, _ := auth.OrganizationID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return identity{UserID: uid, OrganizationID: org, Role: role}, true
}

// effectiveOrganization resolves the tenant all data operations are scoped to.
// An admin with an active impersonation session acts inside the impersonated
// organization; everyone else acts inside their own.
func (h Handlers) effectiveOrganization(c *gin.Context) (identity, string, bool) {
	id, ok := callerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return identity{}, "", false
	}
	org := id.OrganizationID
	if h.Sessions != nil {
		if active := h.Sessions.ForAdmin(id.UserID).ActiveOrganizationID(); active != "" {
			org = active
		}
	}
	if org == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return identity{}, "", false
	}
	return id, org, true
}

// --- Auth ---

type loginRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrganizationID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, organization_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrganizationID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// Me reports the caller's effective identity, including any active
// impersonation overlay.
func (h Handlers) Me(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	resp := gin.H{
		"user_id":         id.UserID,
		"organization_id": id.OrganizationID,
		"role":            id.Role,
		"impersonating":   false,
	}
	if h.Sessions != nil {
		sess := h.Sessions.ForAdmin(id.UserID)
		if sess.Impersonating() {
			admin := accounts.Profile{UserID: id.UserID, OrganizationID: id.OrganizationID, Role: id.Role}
			effective := sess.ActiveProfile(admin)
			resp["impersonating"] = true
			resp["effective_user_id"] = effective.UserID
			resp["effective_organization_id"] = sess.ActiveOrganizationID()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// --- Call log ---

func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}
	_, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	var (
		recs []calllog.CallRecord
		err  error
	)
	if clientID := c.Query("client_id"); clientID != "" {
		recs, err = h.Calls.ListByClient(c.Request.Context(), org, clientID)
	} else {
		recs, err = h.Calls.ListAll(c.Request.Context(), org)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs, "remote_active": h.Calls.RemoteActive()})
}

type addCallRequest struct {
	ClientID        string     `json:"client_id"`
	ClientName      string     `json:"client_name"`
	PhoneNumber     string     `json:"phone_number"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int        `json:"duration,omitempty"`
	Outcome         string     `json:"outcome"`
	Notes           string     `json:"notes,omitempty"`
	FollowUp        bool       `json:"follow_up"`
	FollowUpDate    *time.Time `json:"follow_up_date,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
}

func (h Handlers) AddCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}
	id, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	var req addCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.StartTime.IsZero() {
		req.StartTime = time.Now()
	}
	rec, err := h.Calls.Add(c.Request.Context(), calllog.NewCallRecord{
		OrganizationID:  org,
		ClientID:        req.ClientID,
		ClientName:      req.ClientName,
		PhoneNumber:     req.PhoneNumber,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationSeconds: req.DurationSeconds,
		Outcome:         calllog.Outcome(req.Outcome),
		Notes:           req.Notes,
		FollowUp:        req.FollowUp,
		FollowUpDate:    req.FollowUpDate,
		CreatedBy:       id.UserID,
		Tags:            req.Tags,
	})
	if err != nil {
		if errors.Is(err, calllog.ErrInvalidRecord) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log write failed"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h Handlers) UpdateCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}
	_, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	var patch calllog.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Calls.Update(c.Request.Context(), org, callID, patch); err != nil {
		if errors.Is(err, calllog.ErrInvalidRecord) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log write failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) CallStats(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}
	_, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	stats, err := h.Calls.Stats(c.Request.Context(), org)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats computation failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type startCallRequest struct {
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	PhoneNumber string `json:"phone_number"`
}

func (h Handlers) StartCall(c *gin.Context) {
	if h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	id, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Dialer.StartCall(c.Request.Context(), telephony.StartCallRequest{
		OrganizationID: org,
		ClientID:       req.ClientID,
		ClientName:     req.ClientName,
		PhoneNumber:    req.PhoneNumber,
		CreatedBy:      id.UserID,
	})
	switch {
	case errors.Is(err, telephony.ErrTooManyCalls):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "concurrent call limit reached"})
		return
	case errors.Is(err, calllog.ErrInvalidRecord):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id and phone_number required"})
		return
	case errors.Is(err, telephony.ErrNotReady), errors.Is(err, telephony.ErrAudioLocked):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "device not ready"})
		return
	case errors.Is(err, telephony.ErrBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already in progress"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call placement failed"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type completeCallRequest struct {
	Outcome         string `json:"outcome"`
	DurationSeconds int    `json:"duration"`
	Notes           string `json:"notes,omitempty"`
}

func (h Handlers) CompleteCall(c *gin.Context) {
	if h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	_, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	callID := c.Param("call_id")
	var req completeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.Dialer.Complete(c.Request.Context(), telephony.CompleteCallRequest{
		OrganizationID:  org,
		CallID:          callID,
		Outcome:         calllog.Outcome(req.Outcome),
		DurationSeconds: req.DurationSeconds,
		Notes:           req.Notes,
	})
	if err != nil {
		if errors.Is(err, calllog.ErrInvalidRecord) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "valid outcome required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call completion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Clients ---

func (h Handlers) ListClients(c *gin.Context) {
	if h.ClientRepo == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "clients not configured"})
		return
	}
	_, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	list, err := h.ClientRepo.List(c.Request.Context(), org)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "client lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": list})
}

// ImportClients ingests a CSV or TSV body. Valid rows are saved even when
// other rows fail; the summary reports both.
func (h Handlers) ImportClients(c *gin.Context) {
	if h.Importer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "importer not configured"})
		return
	}
	id, org, ok := h.effectiveOrganization(c)
	if !ok {
		return
	}
	summary, err := h.Importer.Import(c.Request.Context(), org, c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogBulkImport(c.Request.Context(), org, id.UserID, id.Role, "clients_csv")
	}
	c.JSON(http.StatusOK, summary)
}

func (h Handlers) ImportTemplate(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="clients_template.csv"`)
	c.Data(http.StatusOK, "text/csv", []byte(clients.TemplateCSV()))
}

// --- Impersonation (admin) ---

type impersonateRequest struct {
	UserID string `json:"user_id"`
}

func (h Handlers) ImpersonateEnter(c *gin.Context) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "impersonation not configured"})
		return
	}
	id, ok := callerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req impersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	admin := accounts.Profile{UserID: id.UserID, OrganizationID: id.OrganizationID, Role: id.Role}
	sess := h.Sessions.ForAdmin(id.UserID)
	err := sess.SwitchToSubAccount(c.Request.Context(), admin, req.UserID)
	switch {
	case errors.Is(err, impersonation.ErrAccessDenied):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin capability required"})
		return
	case errors.Is(err, impersonation.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "sub-account not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "impersonation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"impersonating":             true,
		"effective_organization_id": sess.ActiveOrganizationID(),
	})
}

func (h Handlers) ImpersonateExit(c *gin.Context) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "impersonation not configured"})
		return
	}
	id, ok := callerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	admin := accounts.Profile{UserID: id.UserID, OrganizationID: id.OrganizationID, Role: id.Role}
	h.Sessions.ForAdmin(id.UserID).Exit(c.Request.Context(), admin)
	c.JSON(http.StatusOK, gin.H{"impersonating": false})
}

// ResetCallLogRemote re-enables the remote call-log backend after an operator
// confirms it is reachable again. This is the only path back from fallback.
func (h Handlers) ResetCallLogRemote(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}
	h.Calls.ResetRemote()
	c.JSON(http.StatusOK, gin.H{"remote_active": h.Calls.RemoteActive()})
}
