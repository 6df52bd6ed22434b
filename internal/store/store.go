package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("store: not found")

const (
	callKeyPrefix     = "call:"
	customerKeyPrefix = "customer:"
	phoneKeyPrefix    = "customer:phone:"
	smsKeyPrefix      = "sms:"
	followUpKeyPrefix = "followup:"

	callsRecentIndex     = "calls:recent"
	smsRecentIndex       = "sms:recent"
	followUpPendingIndex = "followups:pending"

	sentinelKey = "test:connection"

	callTTL     = 30 * 24 * time.Hour
	smsTTL      = 30 * 24 * time.Hour
	followUpTTL = 7 * 24 * time.Hour
)

type healthState int

const (
	healthUntested healthState = iota
	healthHealthy
	healthDisabled
)

// Store persists call sessions, customers, SMS records and follow-up
// schedules. Every write lands in an in-process memory map first, then is
// attempted against the durable backend. The backend's health is probed on
// first use; any operational failure afterwards disables it for the rest of
// the process lifetime and the store silently runs memory-only.
//
// This trades durability for availability: a restart loses memory-only data,
// which is acceptable for the dashboard-reporting use case.
//
// Update methods are read-merge-write with no version check. Two overlapping
// turns for the same session can lose one side's writes; callers needing
// strict ordering must serialize at the ingress.
type Store struct {
	mu  sync.RWMutex
	mem map[string][]byte

	backend   Backend
	opTimeout time.Duration

	healthMu sync.Mutex
	health   healthState

	now func() time.Time
	log *slog.Logger
}

type Options struct {
	// OpTimeout bounds each durable operation. Timeout counts as an
	// operational failure and disables the backend.
	OpTimeout time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

// New builds a store. A nil backend means memory-only from the start.
func New(backend Backend, opts Options) *Store {
	s := &Store{
		mem:       make(map[string][]byte),
		backend:   backend,
		opTimeout: opts.OpTimeout,
		now:       opts.Now,
		log:       opts.Logger,
	}
	if s.opTimeout <= 0 {
		s.opTimeout = 2 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if backend == nil {
		s.health = healthDisabled
	}
	return s
}

// DurableHealthy reports whether the durable backend is currently in use.
func (s *Store) DurableHealthy() bool {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	return s.health == healthHealthy
}

// --- durable plumbing ---

// durably runs op against the durable backend under the health policy.
// It returns true only if the backend was usable and op succeeded. A key miss
// (errBackendMiss) is not an operational failure and does not disable the
// backend.
func (s *Store) durably(ctx context.Context, op func(ctx context.Context) error) bool {
	if !s.ensureHealthy(ctx) {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := op(opCtx); err != nil {
		if errors.Is(err, errBackendMiss) {
			return false
		}
		s.disable(err)
		return false
	}
	return true
}

func (s *Store) ensureHealthy(ctx context.Context) bool {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	switch s.health {
	case healthHealthy:
		return true
	case healthDisabled:
		return false
	}

	// First use: lightweight set+get probe against a sentinel key.
	probeCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.backend.Set(probeCtx, sentinelKey, "ok", time.Second); err != nil {
		s.health = healthDisabled
		s.log.Error("durable backend probe failed, using memory-only storage", "err", err)
		return false
	}
	if _, err := s.backend.Get(probeCtx, sentinelKey); err != nil && !errors.Is(err, errBackendMiss) {
		s.health = healthDisabled
		s.log.Error("durable backend probe failed, using memory-only storage", "err", err)
		return false
	}
	s.health = healthHealthy
	return true
}

func (s *Store) disable(err error) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	if s.health != healthDisabled {
		s.health = healthDisabled
		s.log.Error("durable backend operation failed, disabling for process lifetime", "err", err)
	}
}

// --- memory plumbing ---

func (s *Store) memSet(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		// Record types are plain structs; this is unreachable in practice.
		s.log.Error("memory store marshal failed", "key", key, "err", err)
		return
	}
	s.mu.Lock()
	s.mem[key] = raw
	s.mu.Unlock()
}

func (s *Store) memGet(key string, out any) bool {
	s.mu.RLock()
	raw, ok := s.mem[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *Store) memScan(prefix string, visit func(raw []byte)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, raw := range s.mem {
		if strings.HasPrefix(key, prefix) && !strings.HasPrefix(key, phoneKeyPrefix) {
			visit(raw)
		}
	}
}

func (s *Store) setBoth(ctx context.Context, key string, v any, ttl time.Duration, index string, score float64, member string) {
	s.memSet(key, v)
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.durably(ctx, func(ctx context.Context) error {
		if err := s.backend.Set(ctx, key, string(raw), ttl); err != nil {
			return err
		}
		if index != "" {
			if err := s.backend.ZAdd(ctx, index, score, member); err != nil {
				return err
			}
		}
		return nil
	})
}

// getRecord reads a record memory-first; writes always land in memory before
// the durable backend, so within one process memory is never staler than
// durable. The durable read only matters after a restart.
func (s *Store) getRecord(ctx context.Context, key string, out any) error {
	if s.memGet(key, out) {
		return nil
	}
	found := false
	s.durably(ctx, func(ctx context.Context) error {
		raw, err := s.backend.Get(ctx, key)
		if err != nil {
			return err
		}
		if json.Unmarshal([]byte(raw), out) == nil {
			found = true
		}
		return nil
	})
	if !found {
		return ErrNotFound
	}
	return nil
}

// --- call sessions ---

func (s *Store) CreateCallSession(ctx context.Context, sess CallSession) {
	s.setBoth(ctx, callKeyPrefix+sess.ID, sess, callTTL, callsRecentIndex, float64(s.now().UnixMilli()), sess.ID)
}

func (s *Store) GetCallSession(ctx context.Context, callID string) (CallSession, error) {
	var sess CallSession
	if err := s.getRecord(ctx, callKeyPrefix+callID, &sess); err != nil {
		return CallSession{}, err
	}
	return sess, nil
}

// SessionUpdate is a partial CallSession. Nil fields are left unchanged; the
// merge is shallow and the whole merged record is written back.
type SessionUpdate struct {
	Transcript         []ConversationMessage
	CustomerName       *string
	AppointmentDetails *AppointmentDetails
	Sentiment          *Sentiment
	Intent             *string
	Status             *CallStatus
	Outcome            *CallOutcome
	EndTime            *time.Time
	Duration           *int
}

func (u SessionUpdate) applyTo(sess *CallSession) {
	if u.Transcript != nil {
		sess.Transcript = u.Transcript
	}
	if u.CustomerName != nil {
		sess.CustomerName = *u.CustomerName
	}
	if u.AppointmentDetails != nil {
		sess.AppointmentDetails = u.AppointmentDetails
	}
	if u.Sentiment != nil {
		sess.Sentiment = *u.Sentiment
	}
	if u.Intent != nil {
		sess.Intent = *u.Intent
	}
	if u.Status != nil {
		sess.Status = *u.Status
	}
	if u.Outcome != nil {
		sess.Outcome = *u.Outcome
	}
	if u.EndTime != nil {
		sess.EndTime = u.EndTime
	}
	if u.Duration != nil {
		sess.Duration = *u.Duration
	}
}

// UpdateCallSession is read-merge-write: it loads the current record, applies
// the partial, and writes the merged whole back (last write wins). A missing
// session is created from the update alone.
func (s *Store) UpdateCallSession(ctx context.Context, callID string, u SessionUpdate) {
	sess, err := s.GetCallSession(ctx, callID)
	if err != nil {
		sess = CallSession{ID: callID}
	}
	u.applyTo(&sess)

	s.memSet(callKeyPrefix+callID, sess)
	raw, err := json.Marshal(sess)
	if err != nil {
		return
	}
	s.durably(ctx, func(ctx context.Context) error {
		return s.backend.Set(ctx, callKeyPrefix+callID, string(raw), callTTL)
	})
}

// RecentCalls returns up to limit sessions, newest first. The durable recency
// index is preferred; when it is unavailable or empty the memory map is
// scanned and sorted by start time.
func (s *Store) RecentCalls(ctx context.Context, limit int) []CallSession {
	if limit <= 0 {
		limit = 50
	}

	var out []CallSession
	s.durably(ctx, func(ctx context.Context) error {
		ids, err := s.backend.ZRevRange(ctx, callsRecentIndex, 0, int64(limit-1))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if sess, err := s.GetCallSession(ctx, id); err == nil {
				out = append(out, sess)
			}
		}
		return nil
	})
	if len(out) > 0 {
		return out
	}

	s.memScan(callKeyPrefix, func(raw []byte) {
		var sess CallSession
		if json.Unmarshal(raw, &sess) == nil {
			out = append(out, sess)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- customers ---

func (s *Store) CreateOrUpdateCustomer(ctx context.Context, cust Customer) {
	s.memSet(customerKeyPrefix+cust.ID, cust)
	s.memSet(phoneKeyPrefix+cust.Phone, cust.ID)

	raw, err := json.Marshal(cust)
	if err != nil {
		return
	}
	s.durably(ctx, func(ctx context.Context) error {
		if err := s.backend.Set(ctx, customerKeyPrefix+cust.ID, string(raw), 0); err != nil {
			return err
		}
		id, _ := json.Marshal(cust.ID)
		return s.backend.Set(ctx, phoneKeyPrefix+cust.Phone, string(id), 0)
	})
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	var cust Customer
	if err := s.getRecord(ctx, customerKeyPrefix+customerID, &cust); err != nil {
		return Customer{}, err
	}
	return cust, nil
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	var id string
	if err := s.getRecord(ctx, phoneKeyPrefix+phone, &id); err != nil {
		return Customer{}, err
	}
	return s.GetCustomer(ctx, id)
}

// --- sms messages ---

func (s *Store) CreateSMSMessage(ctx context.Context, msg SMSMessage) {
	s.setBoth(ctx, smsKeyPrefix+msg.ID, msg, smsTTL, smsRecentIndex, float64(s.now().UnixMilli()), msg.ID)
}

func (s *Store) GetSMSMessage(ctx context.Context, messageID string) (SMSMessage, error) {
	var msg SMSMessage
	if err := s.getRecord(ctx, smsKeyPrefix+messageID, &msg); err != nil {
		return SMSMessage{}, err
	}
	return msg, nil
}

func (s *Store) RecentSMS(ctx context.Context, limit int) []SMSMessage {
	if limit <= 0 {
		limit = 50
	}

	var out []SMSMessage
	s.durably(ctx, func(ctx context.Context) error {
		ids, err := s.backend.ZRevRange(ctx, smsRecentIndex, 0, int64(limit-1))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if msg, err := s.GetSMSMessage(ctx, id); err == nil {
				out = append(out, msg)
			}
		}
		return nil
	})
	if len(out) > 0 {
		return out
	}

	s.memScan(smsKeyPrefix, func(raw []byte) {
		var msg SMSMessage
		if json.Unmarshal(raw, &msg) == nil {
			out = append(out, msg)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- follow-ups ---

func (s *Store) ScheduleFollowUp(ctx context.Context, f FollowUpSchedule) {
	s.setBoth(ctx, followUpKeyPrefix+f.ID, f, followUpTTL, followUpPendingIndex, float64(f.ScheduledFor.UnixMilli()), f.ID)
}

func (s *Store) GetFollowUp(ctx context.Context, followUpID string) (FollowUpSchedule, error) {
	var f FollowUpSchedule
	if err := s.getRecord(ctx, followUpKeyPrefix+followUpID, &f); err != nil {
		return FollowUpSchedule{}, err
	}
	return f, nil
}

// UpdateFollowUpStatus moves a follow-up out of pending. Terminal statuses
// are removed from the due-time index so they are never picked up again.
func (s *Store) UpdateFollowUpStatus(ctx context.Context, followUpID string, status FollowUpStatus) {
	f, err := s.GetFollowUp(ctx, followUpID)
	if err != nil {
		return
	}
	f.Status = status
	s.memSet(followUpKeyPrefix+followUpID, f)

	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	s.durably(ctx, func(ctx context.Context) error {
		if err := s.backend.Set(ctx, followUpKeyPrefix+followUpID, string(raw), followUpTTL); err != nil {
			return err
		}
		if status == FollowUpSent || status == FollowUpFailed {
			return s.backend.ZRem(ctx, followUpPendingIndex, followUpID)
		}
		return nil
	})
}

// PendingFollowUps returns follow-ups due at or before the given time.
func (s *Store) PendingFollowUps(ctx context.Context, before time.Time) []FollowUpSchedule {
	var out []FollowUpSchedule
	s.durably(ctx, func(ctx context.Context) error {
		ids, err := s.backend.ZRangeByScoreMax(ctx, followUpPendingIndex, float64(before.UnixMilli()))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if f, err := s.GetFollowUp(ctx, id); err == nil {
				out = append(out, f)
			}
		}
		return nil
	})
	if len(out) > 0 {
		return out
	}

	s.memScan(followUpKeyPrefix, func(raw []byte) {
		var f FollowUpSchedule
		if json.Unmarshal(raw, &f) == nil && f.Status == FollowUpPending && !f.ScheduledFor.After(before) {
			out = append(out, f)
		}
	})
	return out
}

// --- analytics ---

// Stats aggregates the most recent 100 calls for the dashboard. Average
// sentiment is bucketed by the share of positive calls: >60% positive,
// >30% neutral, else negative.
func (s *Store) Stats(ctx context.Context) CallStats {
	recent := s.RecentCalls(ctx, 100)

	stats := CallStats{TotalCalls: len(recent), AverageSentiment: "negative"}
	positive := 0
	for _, c := range recent {
		if c.Status == CallStatusActive {
			stats.ActiveCalls++
		}
		if c.Outcome == OutcomeAppointmentBooked {
			stats.AppointmentsBooked++
		}
		if c.Sentiment == SentimentPositive {
			positive++
		}
	}
	if len(recent) == 0 {
		return stats
	}
	ratio := float64(positive) / float64(len(recent))
	switch {
	case ratio > 0.6:
		stats.AverageSentiment = "positive"
	case ratio > 0.3:
		stats.AverageSentiment = "neutral"
	}
	return stats
}
