package store

import "time"

// Record types persisted by the session store. These mirror what the dashboard
// reads, so JSON tags are part of the contract.

type CallStatus string

const (
	CallStatusActive      CallStatus = "active"
	CallStatusCompleted   CallStatus = "completed"
	CallStatusTransferred CallStatus = "transferred"
	CallStatusFailed      CallStatus = "failed"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type CallOutcome string

const (
	OutcomeAppointmentBooked  CallOutcome = "appointment_booked"
	OutcomeTransferredToAgent CallOutcome = "transferred_to_agent"
	OutcomeSMSSent            CallOutcome = "sms_sent"
	OutcomeNoAction           CallOutcome = "no_action"
)

// CallSession is the accumulating state of one phone call.
//
// Status is monotonic in practice (active -> completed/transferred/failed) but
// a session in a terminal state still accepts further turns: callers keep
// talking after their appointment is confirmed, and the agent keeps answering.
type CallSession struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customerId"`
	CustomerPhone string     `json:"customerPhone"`
	Status        CallStatus `json:"status"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	// Duration is in seconds, set when the call is explicitly ended.
	Duration int `json:"duration,omitempty"`

	// Sentiment and Intent reflect the latest utterance only, recomputed each
	// turn. No history is kept for either.
	Sentiment Sentiment `json:"sentiment"`
	Intent    string    `json:"intent"`

	// Transcript is append-only within a call.
	Transcript []ConversationMessage `json:"transcript"`

	// CustomerName is set once extracted and never cleared.
	CustomerName string `json:"customerName,omitempty"`

	// AppointmentDetails fields are populated independently and monotonically:
	// a later turn may overwrite a field with a new non-empty extraction but
	// never unset it.
	AppointmentDetails *AppointmentDetails `json:"appointmentDetails,omitempty"`

	Outcome CallOutcome `json:"outcome,omitempty"`
}

type ConversationMessage struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sentiment string    `json:"sentiment,omitempty"`
}

type AppointmentDetails struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
	Notes   string `json:"notes,omitempty"`
}

// Customer is one record per phone number.
type Customer struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`

	// CallHistory is an append-only list of session ids.
	CallHistory []string `json:"callHistory"`

	LastContact        time.Time `json:"lastContact"`
	TotalCalls         int       `json:"totalCalls"`
	AppointmentsBooked int       `json:"appointmentsBooked"`
}

type SMSStatus string

const (
	SMSStatusSent      SMSStatus = "sent"
	SMSStatusDelivered SMSStatus = "delivered"
	SMSStatusFailed    SMSStatus = "failed"
)

// SMSMessage is an immutable record of one sent or received text.
type SMSMessage struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customerId"`
	CustomerPhone string    `json:"customerPhone"`
	Content       string    `json:"content"`
	SentAt        time.Time `json:"sentAt"`
	Status        SMSStatus `json:"status"`
	RelatedCallID string    `json:"relatedCallId,omitempty"`
}

type FollowUpStatus string

const (
	FollowUpPending FollowUpStatus = "pending"
	FollowUpSent    FollowUpStatus = "sent"
	FollowUpFailed  FollowUpStatus = "failed"
)

// FollowUpSchedule is a deferred SMS job, eligible once now >= ScheduledFor.
// Status transitions pending->sent or pending->failed exactly once.
type FollowUpSchedule struct {
	ID             string         `json:"id"`
	CallID         string         `json:"callId"`
	CustomerID     string         `json:"customerId"`
	CustomerPhone  string         `json:"customerPhone"`
	Scenario       string         `json:"scenario"`
	ScheduledFor   time.Time      `json:"scheduledFor"`
	Status         FollowUpStatus `json:"status"`
	MessageContent string         `json:"messageContent"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// CallStats is the aggregate shape the dashboard consumes.
type CallStats struct {
	TotalCalls         int    `json:"totalCalls"`
	ActiveCalls        int    `json:"activeCalls"`
	AppointmentsBooked int    `json:"appointmentsBooked"`
	AverageSentiment   string `json:"averageSentiment"`
}
