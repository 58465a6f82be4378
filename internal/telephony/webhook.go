package telephony

import (
	"net/http"
	"time"

	"crm-platform/internal/calllog"

	"github.com/gin-gonic/gin"
)

// StatusWebhookHandler receives provider call-status callbacks and resolves
// the matching call record by provider session id.
//
// NOTE: In production this endpoint should be protected by provider signature
// validation.
type StatusWebhookHandler struct {
	Calls *calllog.Log
	Clock func() time.Time
}

type statusCallback struct {
	OrganizationID    string `json:"organization_id"`
	ProviderSessionID string `json:"provider_session_id"`
	Status            string `json:"status"`
	DurationSeconds   int    `json:"duration_seconds"`
}

// outcomeForStatus normalizes provider statuses to call outcomes.
func outcomeForStatus(status string) (calllog.Outcome, bool) {
	switch status {
	case "completed", "answered":
		return calllog.OutcomeConnected, true
	case "no-answer", "no_answer":
		return calllog.OutcomeNoAnswer, true
	case "busy":
		return calllog.OutcomeBusy, true
	case "declined", "rejected":
		return calllog.OutcomeDeclined, true
	case "voicemail":
		return calllog.OutcomeVoicemail, true
	case "failed", "canceled":
		return calllog.OutcomeFailed, true
	default:
		return "", false
	}
}

func (h StatusWebhookHandler) HandleStatus(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log not configured"})
		return
	}

	var cb statusCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if cb.OrganizationID == "" || cb.ProviderSessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "organization_id and provider_session_id required"})
		return
	}

	outcome, ok := outcomeForStatus(cb.Status)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ctx := c.Request.Context()
	all, err := h.Calls.ListAll(ctx, cb.OrganizationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	var callID string
	for _, r := range all {
		if r.ProviderSessionID == cb.ProviderSessionID {
			callID = r.ID
			break
		}
	}
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown call session"})
		return
	}

	now := time.Now
	if h.Clock != nil {
		now = h.Clock
	}
	end := now()
	patch := calllog.Patch{Outcome: &outcome, EndTime: &end}
	if outcome == calllog.OutcomeConnected {
		patch.DurationSeconds = &cb.DurationSeconds
	}
	if err := h.Calls.Update(ctx, cb.OrganizationID, callID, patch); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
