package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/followup"
	"voiceagent-platform/internal/reporting"
	"voiceagent-platform/internal/store"
)

type stubSender struct{ sent int }

func (s *stubSender) Send(ctx context.Context, to, body string) (string, error) {
	s.sent++
	return "SM123", nil
}

func newTestHandlers(t *testing.T) (Handlers, *store.Store) {
	t.Helper()
	st := store.New(nil, store.Options{})

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	return Handlers{
		Auth:        manager,
		OperatorKey: "operator-key",
		Store:       st,
		Reporting:   reporting.NewService(st),
		FollowUps:   followup.NewService(st, &stubSender{}, pool, "PostSavage.ai", nil),
		SMS:         &stubSender{},
	}, st
}

func doJSON(t *testing.T, handler gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler(c)
	return w
}

func TestLogin(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{"operator_key":"operator-key"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
}

func TestLogin_RejectsWrongKey(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{"operator_key":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardData_AlwaysOK(t *testing.T) {
	h, st := newTestHandlers(t)
	st.CreateCallSession(context.Background(), store.CallSession{ID: "call-1", Status: store.CallStatusActive})

	w := doJSON(t, h.DashboardData, http.MethodGet, "/v1/dashboard/data", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap reporting.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Calls, 1)
	assert.Equal(t, 1, snap.Stats.ActiveCalls)
}

func TestScheduleFollowUp(t *testing.T) {
	h, st := newTestHandlers(t)

	w := doJSON(t, h.ScheduleFollowUp, http.MethodPost, "/v1/follow-ups/schedule",
		`{"callId":"call-1","customerPhone":"+15550001111","scenario":"missed_call","delayMinutes":15}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success    bool   `json:"success"`
		FollowUpID string `json:"followUpId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	f, err := st.GetFollowUp(context.Background(), resp.FollowUpID)
	require.NoError(t, err)
	assert.Equal(t, store.FollowUpPending, f.Status)
}

func TestScheduleFollowUp_RejectsMissingFields(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.ScheduleFollowUp, http.MethodPost, "/v1/follow-ups/schedule", `{"callId":"call-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendSMS_RecordsAndMarksOutcome(t *testing.T) {
	h, st := newTestHandlers(t)
	ctx := context.Background()
	st.CreateCallSession(ctx, store.CallSession{ID: "call-1", Status: store.CallStatusCompleted})

	w := doJSON(t, h.SendSMS, http.MethodPost, "/v1/sms/send",
		`{"customerPhone":"+15550001111","callId":"call-1","message":"See you friday!"}`)
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := st.GetSMSMessage(ctx, "SM123")
	require.NoError(t, err)
	assert.Equal(t, store.SMSStatusSent, msg.Status)
	assert.Equal(t, "call-1", msg.RelatedCallID)

	sess, err := st.GetCallSession(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeSMSSent, sess.Outcome)
}

func TestAnalyzeConversation(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.AnalyzeConversation, http.MethodPost, "/v1/calls/analyze",
		`{"transcript":[{"role":"user","content":"I want to speak to a human"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Intent          string `json:"intent"`
		ShouldTransfer  bool   `json:"shouldTransfer"`
		SuggestedAction string `json:"suggestedAction"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "transfer_to_agent", resp.Intent)
	assert.True(t, resp.ShouldTransfer)
	assert.Equal(t, "transfer_to_agent", resp.SuggestedAction)
}

func TestEndCall(t *testing.T) {
	h, st := newTestHandlers(t)
	ctx := context.Background()

	start := time.Now().Add(-90 * time.Second)
	st.CreateCallSession(ctx, store.CallSession{ID: "call-1", Status: store.CallStatusActive, StartTime: start})

	w := doJSON(t, h.EndCall, http.MethodPost, "/v1/calls/end", `{"callId":"call-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	sess, err := st.GetCallSession(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, store.CallStatusCompleted, sess.Status)
	assert.NotNil(t, sess.EndTime)
	assert.GreaterOrEqual(t, sess.Duration, 90)
}

func TestEndCall_UnknownSession(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.EndCall, http.MethodPost, "/v1/calls/end", `{"callId":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransferCall(t *testing.T) {
	h, st := newTestHandlers(t)
	ctx := context.Background()
	st.CreateCallSession(ctx, store.CallSession{ID: "call-1", Status: store.CallStatusActive})

	w := doJSON(t, h.TransferCall, http.MethodPost, "/v1/calls/transfer",
		`{"callId":"call-1","reason":"complex request"}`)
	require.Equal(t, http.StatusOK, w.Code)

	sess, err := st.GetCallSession(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, store.CallStatusTransferred, sess.Status)
	assert.Equal(t, store.OutcomeTransferredToAgent, sess.Outcome)
}
