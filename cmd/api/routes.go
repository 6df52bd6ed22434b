package main

import (
	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, webhooks telephony.WebhookHandlers, api httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "durable": webhooks.Store.DurableHealthy()})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		r.POST("/webhooks/twilio/voice", webhooks.HandleIncomingCall)
		r.POST("/webhooks/twilio/voice/turn", webhooks.HandleTurn)
		r.POST("/webhooks/twilio/voice/status", webhooks.HandleStatusCallback)
		r.POST("/webhooks/twilio/sms", webhooks.HandleIncomingSMS)
	}

	// Token issuance is public: it validates the operator key itself.
	r.POST("/v1/auth/login", api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/dashboard/data", api.DashboardData)

		followUps := v1.Group("/follow-ups")
		{
			followUps.POST("/schedule", api.ScheduleFollowUp)
			followUps.GET("/", api.ListFollowUps)
			followUps.POST("/send", api.SendFollowUps)
		}

		sms := v1.Group("/sms")
		{
			sms.POST("/send", api.SendSMS)
		}

		callsGroup := v1.Group("/calls")
		{
			callsGroup.POST("/analyze", api.AnalyzeConversation)
			callsGroup.POST("/end", api.EndCall)
			callsGroup.POST("/transfer", api.TransferCall)
		}
	}
}
