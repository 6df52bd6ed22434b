// Package followup schedules and delivers templated follow-up texts after
// a call ends.
package followup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"voiceagent-platform/internal/store"
	"voiceagent-platform/internal/telephony"
)

var ErrInvalidRequest = errors.New("followup: callId, customerPhone and scenario are required")

const (
	sendTimeout = 30 * time.Second
	listWindow  = 7 * 24 * time.Hour
)

// Request describes one follow-up to schedule.
type Request struct {
	CallID        string       `json:"callId"`
	CustomerID    string       `json:"customerId"`
	CustomerPhone string       `json:"customerPhone"`
	Scenario      string       `json:"scenario"`
	Data          TemplateData `json:"data"`
	DelayMinutes  int          `json:"delayMinutes"`
}

// Scheduled is returned by Schedule.
type Scheduled struct {
	FollowUpID   string    `json:"followUpId"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Message      string    `json:"message"`
}

// Result records the outcome for one processed follow-up.
type Result struct {
	FollowUpID string `json:"followUpId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// Report summarizes one ProcessDue run.
type Report struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

type Service struct {
	store        *store.Store
	sender       telephony.SMSSender
	pool         *ants.Pool
	businessName string
	now          func() time.Time
	log          *slog.Logger
}

func NewService(st *store.Store, sender telephony.SMSSender, pool *ants.Pool, businessName string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:        st,
		sender:       sender,
		pool:         pool,
		businessName: businessName,
		now:          time.Now,
		log:          log,
	}
}

// Schedule records a follow-up due DelayMinutes from now. The message body
// is rendered immediately so the scheduled entry is self-contained.
func (s *Service) Schedule(ctx context.Context, req Request) (Scheduled, error) {
	if req.CallID == "" || req.CustomerPhone == "" || req.Scenario == "" {
		return Scheduled{}, ErrInvalidRequest
	}

	customerID := req.CustomerID
	if customerID == "" {
		customerID = uuid.NewString()
	}

	message := Message(req.Scenario, s.businessName, req.Data)
	now := s.now()
	scheduledFor := now.Add(time.Duration(req.DelayMinutes) * time.Minute)

	f := store.FollowUpSchedule{
		ID:             uuid.NewString(),
		CallID:         req.CallID,
		CustomerID:     customerID,
		CustomerPhone:  req.CustomerPhone,
		Scenario:       req.Scenario,
		ScheduledFor:   scheduledFor,
		Status:         store.FollowUpPending,
		MessageContent: message,
		CreatedAt:      now,
	}
	s.store.ScheduleFollowUp(ctx, f)

	s.log.Info("follow-up scheduled", "follow_up_id", f.ID, "scenario", f.Scenario, "scheduled_for", scheduledFor)

	return Scheduled{FollowUpID: f.ID, ScheduledFor: scheduledFor, Message: message}, nil
}

// List returns pending follow-ups due within the next week.
func (s *Service) List(ctx context.Context) []store.FollowUpSchedule {
	return s.store.PendingFollowUps(ctx, s.now().Add(listWindow))
}

// ProcessDue sends every follow-up whose scheduled time has passed. Sends
// run concurrently on the worker pool; each outcome is recorded against the
// follow-up and, on success, as an SMSMessage.
func (s *Service) ProcessDue(ctx context.Context) Report {
	due := s.store.PendingFollowUps(ctx, s.now())
	s.log.Info("processing pending follow-ups", "count", len(due))

	results := make([]Result, len(due))
	var wg sync.WaitGroup
	for i, f := range due {
		wg.Add(1)
		i, f := i, f
		task := func() {
			defer wg.Done()
			results[i] = s.processOne(f)
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool rejected the task, run inline so the follow-up is
			// not silently skipped.
			task()
		}
	}
	wg.Wait()

	report := Report{Processed: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report
}

func (s *Service) processOne(f store.FollowUpSchedule) Result {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	messageID, err := s.sender.Send(ctx, f.CustomerPhone, f.MessageContent)
	if err != nil {
		s.store.UpdateFollowUpStatus(ctx, f.ID, store.FollowUpFailed)
		s.log.Error("follow-up send failed", "follow_up_id", f.ID, "err", err)
		return Result{FollowUpID: f.ID, Success: false, Error: err.Error()}
	}

	s.store.UpdateFollowUpStatus(ctx, f.ID, store.FollowUpSent)
	if messageID == "" {
		messageID = uuid.NewString()
	}
	s.store.CreateSMSMessage(ctx, store.SMSMessage{
		ID:            messageID,
		CustomerID:    f.CustomerID,
		CustomerPhone: f.CustomerPhone,
		Content:       f.MessageContent,
		SentAt:        s.now(),
		Status:        store.SMSStatusSent,
		RelatedCallID: f.CallID,
	})

	s.log.Info("follow-up sent", "follow_up_id", f.ID)
	return Result{FollowUpID: f.ID, Success: true}
}
