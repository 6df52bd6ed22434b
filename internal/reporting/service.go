// Package reporting assembles the read-only dashboard view over recorded
// calls and messages.
package reporting

import (
	"context"
	"time"

	"voiceagent-platform/internal/store"
)

const recentLimit = 10

// Snapshot is the single payload the dashboard polls for.
type Snapshot struct {
	Calls     []store.CallSession `json:"calls"`
	Stats     store.CallStats     `json:"stats"`
	SMS       []store.SMSMessage  `json:"sms"`
	Timestamp time.Time           `json:"timestamp"`
}

type Service struct {
	store *store.Store
	now   func() time.Time
}

func NewService(st *store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Snapshot gathers recent calls, aggregate stats and recent SMS. It never
// fails: the store absorbs backend trouble and falls back to memory, so the
// worst case is an empty but well-formed snapshot.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	calls := s.store.RecentCalls(ctx, recentLimit)
	if calls == nil {
		calls = []store.CallSession{}
	}
	sms := s.store.RecentSMS(ctx, recentLimit)
	if sms == nil {
		sms = []store.SMSMessage{}
	}
	return Snapshot{
		Calls:     calls,
		Stats:     s.store.Stats(ctx),
		SMS:       sms,
		Timestamp: s.now(),
	}
}
