package main

import (
	"crm-platform/internal/httpapi"
	"crm-platform/internal/rbac"
	"crm-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhook telephony.StatusWebhookHandler, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	r.POST("/webhooks/telephony/status", webhook.HandleStatus)

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// CALL LOG routes
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireOrganization())
		calls.Use(rbac.RequireAnyRole(rbac.RoleSubAccount))
		{
			calls.GET("", h.ListCalls)
			calls.POST("", h.AddCall)
			calls.PATCH("/:call_id", h.UpdateCall)
			calls.GET("/stats", h.CallStats)

			calls.POST("/start", h.StartCall)
			calls.POST("/:call_id/complete", h.CompleteCall)
		}

		// CLIENT routes
		clientsGroup := v1.Group("/clients")
		clientsGroup.Use(rbac.RequireOrganization())
		clientsGroup.Use(rbac.RequireAnyRole(rbac.RoleSubAccount))
		{
			clientsGroup.GET("", h.ListClients)
			clientsGroup.POST("/import", h.ImportClients)
			clientsGroup.GET("/import/template", h.ImportTemplate)
		}

		// ADMIN routes
		// Support is intentionally NOT included; impersonation is admin-only.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/impersonate", h.ImpersonateEnter)
			admin.DELETE("/impersonate", h.ImpersonateExit)
			admin.POST("/calllog/reset-remote", h.ResetCallLogRemote)
		}
	}
}
