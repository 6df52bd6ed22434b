// Package agent holds the per-turn state machine of a call: it merges
// extracted appointment fields into session state, decides completion, and
// produces the next thing the agent should say.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voiceagent-platform/internal/extract"
	"voiceagent-platform/internal/store"
	"voiceagent-platform/pkg/logger"
)

// TurnAction tells the renderer which voice-response shape to emit.
type TurnAction string

const (
	// ActionReprompt re-listens after silence without touching session state.
	ActionReprompt TurnAction = "reprompt"
	// ActionContinue speaks the reply and gathers the next utterance.
	ActionContinue TurnAction = "continue"
	// ActionConfirmEnd speaks the booking confirmation and hangs up.
	ActionConfirmEnd TurnAction = "confirm_end"
	// ActionEnd speaks a farewell and hangs up.
	ActionEnd TurnAction = "end"
)

type TurnInput struct {
	CallID string
	From   string
	Speech string
}

type TurnResult struct {
	CallID string
	Action TurnAction
	Say    string
}

// ConfirmationDetails is what the confirmation SMS interpolates.
type ConfirmationDetails struct {
	Name   string
	Date   string
	Time   string
	CallID string
}

// ConfirmationSender accepts a confirmation for background delivery. The turn
// flow only needs a submission guarantee; delivery failures are logged by the
// dispatcher, never surfaced to the caller.
type ConfirmationSender interface {
	SubmitConfirmation(phone string, details ConfirmationDetails) error
}

// Processor drives one call turn at a time. Turns are handled as independent
// stateless requests; no lock serializes turns for the same call id, so
// duplicate webhook deliveries race under the store's last-write-wins update.
type Processor struct {
	store         *store.Store
	replies       ReplyGenerator
	confirmations ConfirmationSender
	businessName  string
	now           func() time.Time
}

func NewProcessor(st *store.Store, replies ReplyGenerator, confirmations ConfirmationSender, businessName string) *Processor {
	if businessName == "" {
		businessName = "PostSavage.ai"
	}
	return &Processor{
		store:         st,
		replies:       replies,
		confirmations: confirmations,
		businessName:  businessName,
		now:           time.Now,
	}
}

// ProcessTurn runs the per-turn algorithm. It never returns an error: every
// failure path still yields a speakable result, because the caller must
// always answer the phone with something.
func (p *Processor) ProcessTurn(ctx context.Context, in TurnInput) TurnResult {
	log := logger.From(ctx)

	// Silence mutates nothing, not even the transcript; the same webhook may
	// be re-delivered and must stay idempotent.
	if strings.TrimSpace(in.Speech) == "" {
		return TurnResult{
			CallID: in.CallID,
			Action: ActionReprompt,
			Say:    "I didn't hear anything. Are you still there?",
		}
	}

	sess, err := p.store.GetCallSession(ctx, in.CallID)
	if err != nil {
		// Missing sessions are self-healing: the first heard turn creates one.
		sess = p.newSession(in)
		p.store.CreateCallSession(ctx, sess)
		log.Info("call session created", "call_id", in.CallID, "from", in.From)
	}

	details := store.AppointmentDetails{Service: "General Appointment"}
	if sess.AppointmentDetails != nil {
		details = *sess.AppointmentDetails
	}
	name := sess.CustomerName

	transcript := append(sess.Transcript, store.ConversationMessage{
		Role:      "user",
		Content:   in.Speech,
		Timestamp: p.now(),
	})

	// Monotonic merge: a field is only ever overwritten by a new non-empty
	// extraction, never cleared.
	ex := extract.Appointment(in.Speech)
	if len(ex.Name) > 1 {
		name = ex.Name
	}
	if ex.Date != "" {
		details.Date = ex.Date
	}
	if ex.Time != "" {
		details.Time = ex.Time
	}

	complete := name != "" && details.Date != "" && details.Time != ""

	update := store.SessionUpdate{
		Transcript:   transcript,
		CustomerName: &name,
		Sentiment:    ptr(extract.TurnSentiment(in.Speech)),
		Intent:       ptr(extract.TurnIntent(in.Speech)),
		Status:       ptr(store.CallStatusActive),
	}
	if details.Date != "" || details.Time != "" {
		d := details
		update.AppointmentDetails = &d
	}
	if complete {
		update.Status = ptr(store.CallStatusCompleted)
		update.Outcome = ptr(store.OutcomeAppointmentBooked)
	}
	p.store.UpdateCallSession(ctx, in.CallID, update)

	reply := p.generateReply(ctx, transcript, name, details, complete)

	transcript = append(transcript, store.ConversationMessage{
		Role:      "assistant",
		Content:   reply,
		Timestamp: p.now(),
	})
	p.store.UpdateCallSession(ctx, in.CallID, store.SessionUpdate{Transcript: transcript})

	if !wantsToEnd(in.Speech) {
		return TurnResult{CallID: in.CallID, Action: ActionContinue, Say: reply}
	}

	if complete && in.From != "" {
		p.recordBooking(ctx, in.From, in.CallID, name)

		if p.confirmations != nil {
			if err := p.confirmations.SubmitConfirmation(in.From, ConfirmationDetails{
				Name:   name,
				Date:   details.Date,
				Time:   details.Time,
				CallID: in.CallID,
			}); err != nil {
				log.Error("confirmation sms submission failed", "call_id", in.CallID, "err", err)
			}
		}

		return TurnResult{
			CallID: in.CallID,
			Action: ActionConfirmEnd,
			Say: fmt.Sprintf(
				"Perfect! I've texted you the details for your appointment on %s at %s. Thank you, %s. Have a great day!",
				details.Date, details.Time, name,
			),
		}
	}

	return TurnResult{
		CallID: in.CallID,
		Action: ActionEnd,
		Say:    fmt.Sprintf("Thank you for calling %s. Have a wonderful day!", p.businessName),
	}
}

func (p *Processor) newSession(in TurnInput) store.CallSession {
	phone := in.From
	if phone == "" {
		phone = "unknown"
	}
	return store.CallSession{
		ID:            in.CallID,
		CustomerID:    phone,
		CustomerPhone: phone,
		Status:        store.CallStatusActive,
		StartTime:     p.now(),
		Sentiment:     store.SentimentNeutral,
		Intent:        extract.IntentGeneralInquiry,
		Transcript:    []store.ConversationMessage{},
	}
}

func (p *Processor) generateReply(ctx context.Context, transcript []store.ConversationMessage, name string, details store.AppointmentDetails, complete bool) string {
	log := logger.From(ctx)

	if p.replies != nil {
		// The generator sees the last 6 turns; older context lives in the
		// booking-status block of the system prompt.
		recent := transcript
		if len(recent) > 6 {
			recent = recent[len(recent)-6:]
		}
		messages := make([]Message, 0, len(recent))
		for _, m := range recent {
			messages = append(messages, Message{Role: m.Role, Content: m.Content})
		}

		text, err := p.replies.Reply(ctx, p.systemPrompt(name, details, complete), messages)
		if err == nil {
			return text
		}
		log.Warn("reply generator failed, using deterministic fallback", "err", err)
	}

	return fallbackReply(name, details, complete)
}

// recordBooking updates (or creates) the customer record at appointment
// completion: booked counter, extracted name, last-contact refresh.
func (p *Processor) recordBooking(ctx context.Context, phone, callID, name string) {
	cust, err := p.store.GetCustomerByPhone(ctx, phone)
	if err != nil {
		cust = store.Customer{
			ID:          uuid.NewString(),
			Phone:       phone,
			CallHistory: []string{callID},
			TotalCalls:  1,
		}
	}
	cust.Name = name
	cust.AppointmentsBooked++
	cust.LastContact = p.now()
	p.store.CreateOrUpdateCustomer(ctx, cust)
}

var endPhrases = []string{"that's it", "nothing else", "i'm good", "all set", "goodbye"}

// wantsToEnd detects call-termination intent. Exact matches catch bare
// refusals; substring matches catch sign-off phrases. "nope, not yet" is
// deliberately not a termination: it misses the exact set and contains no
// sign-off phrase.
func wantsToEnd(speech string) bool {
	lower := strings.ToLower(strings.TrimSpace(speech))
	switch lower {
	case "no", "nope", "nothing":
		return true
	}
	for _, phrase := range endPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
