package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/store"
)

type fakeSender struct {
	mu   sync.Mutex
	to   string
	body string
	err  error
	done chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	f.to = to
	f.body = body
	f.mu.Unlock()
	defer close(f.done)
	if f.err != nil {
		return "", f.err
	}
	return "SM123", nil
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("send never ran")
	}
}

func TestSubmitConfirmation(t *testing.T) {
	sender := &fakeSender{done: make(chan struct{})}
	st := store.New(nil, store.Options{})

	d, err := NewDispatcher(2, sender, st, "PostSavage.ai", nil)
	require.NoError(t, err)
	defer d.Stop()

	err = d.SubmitConfirmation("+15550001111", agent.ConfirmationDetails{
		Name: "Jordan", Date: "friday", Time: "2:30 PM", CallID: "call-1",
	})
	require.NoError(t, err)
	waitDone(t, sender.done)

	sender.mu.Lock()
	assert.Equal(t, "+15550001111", sender.to)
	assert.Contains(t, sender.body, "Jordan")
	assert.Contains(t, sender.body, "confirmed for friday at 2:30 PM")
	assert.Contains(t, sender.body, "PostSavage.ai")
	sender.mu.Unlock()

	// Recording happens after Send; poll briefly for the write.
	var msg store.SMSMessage
	require.Eventually(t, func() bool {
		m, err := st.GetSMSMessage(context.Background(), "SM123")
		msg = m
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, store.SMSStatusSent, msg.Status)
	assert.Equal(t, "call-1", msg.RelatedCallID)
}

func TestSubmitConfirmation_FailureRecordedAsFailed(t *testing.T) {
	sender := &fakeSender{done: make(chan struct{}), err: errors.New("carrier down")}
	st := store.New(nil, store.Options{})

	d, err := NewDispatcher(2, sender, st, "PostSavage.ai", nil)
	require.NoError(t, err)
	defer d.Stop()

	require.NoError(t, d.SubmitConfirmation("+15550001111", agent.ConfirmationDetails{CallID: "call-1"}))
	waitDone(t, sender.done)

	require.Eventually(t, func() bool {
		msgs := st.RecentSMS(context.Background(), 10)
		return len(msgs) == 1 && msgs[0].Status == store.SMSStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}
