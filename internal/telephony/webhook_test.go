package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/store"
)

func newWebhookHandlers() (WebhookHandlers, *store.Store) {
	st := store.New(nil, store.Options{})
	proc := agent.NewProcessor(st, nil, nil, "PostSavage.ai")
	return WebhookHandlers{
		Processor:     proc,
		Store:         st,
		PublicBaseURL: "https://agent.example.com",
		BusinessName:  "PostSavage.ai",
	}, st
}

func postForm(t *testing.T, handler gin.HandlerFunc, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req

	handler(c)
	return w
}

func TestHandleIncomingCall(t *testing.T) {
	h, _ := newWebhookHandlers()

	w := postForm(t, h.HandleIncomingCall, "/webhooks/twilio/voice", url.Values{
		"From":    {"+15550001111"},
		"CallSid": {"CA123"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("expected text/xml, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Thank you for calling PostSavage.ai") {
		t.Fatalf("expected greeting:\n%s", body)
	}
	if !strings.Contains(body, "https://agent.example.com/webhooks/twilio/voice/turn?callId=") {
		t.Fatalf("gather must point at the turn endpoint:\n%s", body)
	}
}

func TestHandleTurn_ProcessesSpeech(t *testing.T) {
	h, st := newWebhookHandlers()

	w := postForm(t, h.HandleTurn, "/webhooks/twilio/voice/turn?callId=call-1", url.Values{
		"From":         {"+15550001111"},
		"SpeechResult": {"I'd like to book an appointment"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "May I have your name?") {
		t.Fatalf("expected name prompt:\n%s", body)
	}

	sess, err := st.GetCallSession(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.CustomerPhone != "+15550001111" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestHandleTurn_MissingCallIDApologizes(t *testing.T) {
	h, _ := newWebhookHandlers()

	w := postForm(t, h.HandleTurn, "/webhooks/twilio/voice/turn", url.Values{
		"SpeechResult": {"hello"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("voice endpoints must answer 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "I apologize") {
		t.Fatalf("expected apology:\n%s", w.Body.String())
	}
}

func TestHandleTurn_PanicDegradesToApology(t *testing.T) {
	h, _ := newWebhookHandlers()
	h.Processor = nil // forces a nil-pointer panic inside the handler

	w := postForm(t, h.HandleTurn, "/webhooks/twilio/voice/turn?callId=call-1", url.Values{
		"SpeechResult": {"hello"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("panic path must still answer 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "I apologize") {
		t.Fatalf("expected apology:\n%s", w.Body.String())
	}
}

func TestHandleIncomingSMS_RecordsAndReplies(t *testing.T) {
	h, st := newWebhookHandlers()

	w := postForm(t, h.HandleIncomingSMS, "/webhooks/twilio/sms", url.Values{
		"From":       {"+15550001111"},
		"Body":       {"Can you confirm my booking?"},
		"MessageSid": {"SM123"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Message>") {
		t.Fatalf("expected message reply:\n%s", w.Body.String())
	}

	msg, err := st.GetSMSMessage(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("sms not recorded: %v", err)
	}
	if msg.Status != store.SMSStatusDelivered || msg.Content != "Can you confirm my booking?" {
		t.Fatalf("unexpected record: %+v", msg)
	}
}

func TestHandleIncomingSMS_ActiveCallAwareReply(t *testing.T) {
	h, st := newWebhookHandlers()
	ctx := context.Background()

	st.CreateCallSession(ctx, store.CallSession{ID: "call-1", Status: store.CallStatusActive})
	st.CreateOrUpdateCustomer(ctx, store.Customer{
		ID:          "cust-1",
		Phone:       "+15550001111",
		CallHistory: []string{"call-1"},
	})

	w := postForm(t, h.HandleIncomingSMS, "/webhooks/twilio/sms", url.Values{
		"From": {"+15550001111"},
		"Body": {"I also need parking info"},
	})

	if !strings.Contains(w.Body.String(), "ongoing conversation") {
		t.Fatalf("expected call-aware reply:\n%s", w.Body.String())
	}
}
