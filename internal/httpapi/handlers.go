package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/followup"
	"voiceagent-platform/internal/reporting"
	"voiceagent-platform/internal/store"
	"voiceagent-platform/internal/telephony"
	"voiceagent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth        *auth.Manager
	OperatorKey string

	Store     *store.Store
	Reporting *reporting.Service
	FollowUps *followup.Service
	SMS       telephony.SMSSender

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	OperatorKey string `json:"operator_key"`
}

// Login exchanges the shared operator key for a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.OperatorKey == "" {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.OperatorKey), []byte(h.OperatorKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid operator key"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), "operator")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Dashboard ---

// DashboardData returns the polling payload for the operator dashboard.
// Always 200: backend trouble yields an empty but well-formed snapshot.
func (h Handlers) DashboardData(c *gin.Context) {
	c.JSON(http.StatusOK, h.Reporting.Snapshot(c.Request.Context()))
}

// --- Follow-ups ---

func (h Handlers) ScheduleFollowUp(c *gin.Context) {
	var req followup.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.FollowUps.Schedule(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, followup.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId, customerPhone and scenario required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule follow-up"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"followUpId":   out.FollowUpID,
		"scheduledFor": out.ScheduledFor,
		"message":      out.Message,
	})
}

func (h Handlers) ListFollowUps(c *gin.Context) {
	followUps := h.FollowUps.List(c.Request.Context())
	if followUps == nil {
		followUps = []store.FollowUpSchedule{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "followUps": followUps, "count": len(followUps)})
}

// SendFollowUps delivers every follow-up whose scheduled time has passed.
func (h Handlers) SendFollowUps(c *gin.Context) {
	report := h.FollowUps.ProcessDue(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": report.Processed,
		"sent":      report.Sent,
		"failed":    report.Failed,
		"results":   report.Results,
	})
}

// --- SMS ---

type sendSMSRequest struct {
	CustomerPhone string `json:"customerPhone"`
	CallID        string `json:"callId"`
	Message       string `json:"message"`
}

// SendSMS sends a one-off text to a customer and records it. When the text
// relates to a call, the session outcome is marked sms_sent.
func (h Handlers) SendSMS(c *gin.Context) {
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CustomerPhone == "" || req.Message == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "customerPhone and message required"})
		return
	}

	ctx := c.Request.Context()
	messageID, err := h.SMS.Send(ctx, req.CustomerPhone, req.Message)
	status := store.SMSStatusSent
	if err != nil {
		status = store.SMSStatusFailed
		logger.FromGin(c).Error("sms send failed", "to", req.CustomerPhone, "err", err)
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	h.Store.CreateSMSMessage(ctx, store.SMSMessage{
		ID:            messageID,
		CustomerID:    req.CustomerPhone,
		CustomerPhone: req.CustomerPhone,
		Content:       req.Message,
		SentAt:        h.now(),
		Status:        status,
		RelatedCallID: req.CallID,
	})

	if req.CallID != "" {
		outcome := store.OutcomeSMSSent
		h.Store.UpdateCallSession(ctx, req.CallID, store.SessionUpdate{Outcome: &outcome})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   err == nil,
		"messageId": messageID,
		"content":   req.Message,
	})
}

// --- Conversation analysis ---

type analyzeRequest struct {
	Transcript []store.ConversationMessage `json:"transcript"`
}

func (h Handlers) AnalyzeConversation(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.JSON(http.StatusOK, agent.AnalyzeConversation(req.Transcript))
}

// --- Call control ---

type callRequest struct {
	CallID string `json:"callId"`
	Reason string `json:"reason"`
}

// EndCall closes a session and reports its duration.
func (h Handlers) EndCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId required"})
		return
	}

	ctx := c.Request.Context()
	sess, err := h.Store.GetCallSession(ctx, req.CallID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call session not found"})
		return
	}

	now := h.now()
	duration := int(now.Sub(sess.StartTime) / time.Second)
	status := store.CallStatusCompleted
	h.Store.UpdateCallSession(ctx, req.CallID, store.SessionUpdate{
		Status:   &status,
		EndTime:  &now,
		Duration: &duration,
	})

	outcome := sess.Outcome
	if outcome == "" {
		outcome = store.OutcomeNoAction
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "duration": duration, "outcome": outcome})
}

// TransferCall hands a session off to a live agent.
func (h Handlers) TransferCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callId required"})
		return
	}

	status := store.CallStatusTransferred
	outcome := store.OutcomeTransferredToAgent
	h.Store.UpdateCallSession(c.Request.Context(), req.CallID, store.SessionUpdate{
		Status:  &status,
		Outcome: &outcome,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Call transferred to live agent",
		"transferReason": req.Reason,
	})
}
