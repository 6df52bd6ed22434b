// Package notify delivers SMS in the background. The voice-response path
// only needs a submission guarantee; delivery happens on a worker pool and
// failures are logged and recorded, never propagated to the call.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/store"
	"voiceagent-platform/internal/telephony"
)

const sendTimeout = 30 * time.Second

type Dispatcher struct {
	pool         *ants.Pool
	sender       telephony.SMSSender
	store        *store.Store
	businessName string
	now          func() time.Time
	log          *slog.Logger
}

var _ agent.ConfirmationSender = (*Dispatcher)(nil)

func NewDispatcher(poolSize int, sender telephony.SMSSender, st *store.Store, businessName string, log *slog.Logger) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(r any) {
			log.Error("panic recovered in sms dispatcher", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: dispatcher pool: %w", err)
	}
	return &Dispatcher{
		pool:         pool,
		sender:       sender,
		store:        st,
		businessName: businessName,
		now:          time.Now,
		log:          log,
	}, nil
}

// SubmitConfirmation queues the appointment-confirmation text. It returns
// once the task is accepted by the pool.
func (d *Dispatcher) SubmitConfirmation(phone string, det agent.ConfirmationDetails) error {
	return d.pool.Submit(func() { d.sendConfirmation(phone, det) })
}

func (d *Dispatcher) sendConfirmation(phone string, det agent.ConfirmationDetails) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	body := fmt.Sprintf(
		"Hi %s! Your appointment is confirmed for %s at %s. Thank you for choosing %s! Reply CANCEL to cancel.",
		det.Name, det.Date, det.Time, d.businessName,
	)

	messageID, err := d.sender.Send(ctx, phone, body)
	status := store.SMSStatusSent
	if err != nil {
		status = store.SMSStatusFailed
		d.log.Error("confirmation sms send failed", "to", phone, "call_id", det.CallID, "err", err)
	} else {
		d.log.Info("confirmation sms sent", "to", phone, "call_id", det.CallID)
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	d.store.CreateSMSMessage(ctx, store.SMSMessage{
		ID:            messageID,
		CustomerID:    phone,
		CustomerPhone: phone,
		Content:       body,
		SentAt:        d.now(),
		Status:        status,
		RelatedCallID: det.CallID,
	})
}

// Stop drains the pool. Pending tasks finish; new submissions fail.
func (d *Dispatcher) Stop() {
	d.pool.Release()
}
