package telephony

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/store"
	"voiceagent-platform/pkg/logger"
)

const contentTypeXML = "text/xml"

// WebhookHandlers converts provider webhooks to internal types, delegates to
// the turn processor, and writes voice-control XML.
//
// Voice endpoints never surface errors: every path, including panics, must
// answer with a valid voice document. The provider treats anything else as a
// dead call.
type WebhookHandlers struct {
	Processor     *agent.Processor
	Store         *store.Store
	PublicBaseURL string
	BusinessName  string

	Now func() time.Time
}

func (h WebhookHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h WebhookHandlers) turnURL(callID string) string {
	return h.PublicBaseURL + "/webhooks/twilio/voice/turn?callId=" + url.QueryEscape(callID)
}

// HandleIncomingCall answers a new call: it synthesizes a session id from the
// current time and returns the greeting re-listen shape pointing at the turn
// endpoint.
func (h WebhookHandlers) HandleIncomingCall(c *gin.Context) {
	log := logger.FromGin(c)

	from := c.PostForm("From")
	callSid := c.PostForm("CallSid")
	sessionID := strconv.FormatInt(h.now().UnixMilli(), 10)

	log.Info("incoming call", "from", from, "call_sid", callSid, "session_id", sessionID)

	twiml, err := RenderGreeting(h.turnURL(sessionID), h.BusinessName)
	if err != nil {
		log.Error("greeting render failed", "err", err)
		twiml, _ = RenderServiceDown(h.BusinessName)
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}

// HandleTurn processes one speech result. A missing callId, a processor
// problem, even a panic all degrade to the apology prompt; the status code is
// 200 regardless because the provider only speaks what it receives.
func (h WebhookHandlers) HandleTurn(c *gin.Context) {
	log := logger.FromGin(c)
	callID := c.Query("callId")

	defer func() {
		if r := recover(); r != nil {
			log.Error("turn handler panic", "call_id", callID, "panic", r)
			h.writeApology(c, callID)
		}
	}()

	if callID == "" {
		log.Warn("turn request without callId")
		h.writeApology(c, callID)
		return
	}

	result := h.Processor.ProcessTurn(c.Request.Context(), agent.TurnInput{
		CallID: callID,
		From:   c.PostForm("From"),
		Speech: c.PostForm("SpeechResult"),
	})

	twiml, err := RenderTurn(result, h.turnURL(callID))
	if err != nil {
		log.Error("turn render failed", "call_id", callID, "err", err)
		h.writeApology(c, callID)
		return
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}

func (h WebhookHandlers) writeApology(c *gin.Context, callID string) {
	twiml, err := RenderApology(h.turnURL(callID))
	if err != nil {
		// The apology template contains no dynamic text, so this cannot
		// happen; keep a static document as the absolute floor.
		twiml = xmlFallback
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}

const xmlFallback = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="Polly.Joanna-Neural">I apologize. Please call back in a moment.</Say>
  <Hangup></Hangup>
</Response>`

// HandleStatusCallback acknowledges provider call-status updates. They are
// logged for diagnosis only; session lifecycle is driven by the turn flow.
func (h WebhookHandlers) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)
	log.Info("call status update",
		"call_sid", c.PostForm("CallSid"),
		"status", c.PostForm("CallStatus"),
		"duration", c.PostForm("CallDuration"),
	)
	c.String(http.StatusOK, "OK")
}

// HandleIncomingSMS records an inbound text and auto-replies. If the sender
// has a call in progress the reply acknowledges that context.
func (h WebhookHandlers) HandleIncomingSMS(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	from := c.PostForm("From")
	body := c.PostForm("Body")
	messageSid := c.PostForm("MessageSid")
	if messageSid == "" {
		messageSid = uuid.NewString()
	}

	log.Info("incoming sms", "from", from, "message_sid", messageSid)

	h.Store.CreateSMSMessage(ctx, store.SMSMessage{
		ID:            messageSid,
		CustomerID:    from,
		CustomerPhone: from,
		Content:       body,
		SentAt:        h.now(),
		Status:        store.SMSStatusDelivered,
	})

	reply := "Thank you for your message! We'll get back to you shortly."
	if cust, err := h.Store.GetCustomerByPhone(ctx, from); err == nil && len(cust.CallHistory) > 0 {
		recentID := cust.CallHistory[len(cust.CallHistory)-1]
		if sess, err := h.Store.GetCallSession(ctx, recentID); err == nil && sess.Status == store.CallStatusActive {
			reply = "Thanks for your message! Our AI agent will incorporate this information into your ongoing conversation."
		}
	}

	twiml, err := RenderSMSReply(reply)
	if err != nil {
		log.Error("sms reply render failed", "err", err)
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}
