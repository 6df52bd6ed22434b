package extract

import (
	"strings"

	"voiceagent-platform/internal/store"
)

// Two sentiment vocabularies exist on purpose. The turn flow uses a short
// list tuned for single utterances; the conversation-analysis endpoint uses a
// richer one that also treats "cancel" and "complaint" as negative. They are
// kept separate per call site; unifying them would change observable
// classifications at each endpoint.

var (
	turnPositiveWords = []string{"great", "thanks", "perfect", "awesome", "yes", "wonderful"}
	turnNegativeWords = []string{"bad", "terrible", "angry", "frustrated", "upset", "horrible"}

	conversationPositiveWords = []string{"great", "thanks", "perfect", "awesome", "excellent", "love", "happy", "yes"}
	conversationNegativeWords = []string{"bad", "terrible", "angry", "frustrated", "upset", "no", "cancel", "complaint"}
)

// TurnSentiment classifies a single utterance for the per-turn flow.
func TurnSentiment(utterance string) store.Sentiment {
	return scoreSentiment(utterance, turnPositiveWords, turnNegativeWords)
}

// ConversationSentiment classifies text with the richer vocabulary used by
// the analysis endpoint.
func ConversationSentiment(text string) store.Sentiment {
	return scoreSentiment(text, conversationPositiveWords, conversationNegativeWords)
}

func scoreSentiment(text string, positive, negative []string) store.Sentiment {
	lower := strings.ToLower(text)
	pos := countContained(lower, positive)
	neg := countContained(lower, negative)

	switch {
	case pos > neg && pos > 0:
		return store.SentimentPositive
	case neg > pos && neg > 0:
		return store.SentimentNegative
	default:
		return store.SentimentNeutral
	}
}

func countContained(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

// Intent categories.
const (
	IntentBookAppointment   = "book_appointment"
	IntentModifyAppointment = "modify_appointment"
	IntentTransferToAgent   = "transfer_to_agent"
	IntentGeneralInquiry    = "general_inquiry"
	IntentUnknown           = "unknown"
)

// TurnIntent is the per-turn classifier: first matching group wins, and
// anything unmatched counts as a general inquiry.
func TurnIntent(utterance string) string {
	lower := strings.ToLower(utterance)

	if containsAny(lower, "book", "appointment", "schedule") {
		return IntentBookAppointment
	}
	if containsAny(lower, "speak to", "talk to", "human") {
		return IntentTransferToAgent
	}
	return IntentGeneralInquiry
}

// ConversationIntent is the richer classifier used outside the turn flow. It
// recognizes modification requests and info lookups, and unlike TurnIntent
// reports "unknown" rather than assuming an inquiry.
func ConversationIntent(text string) string {
	lower := strings.ToLower(text)

	if containsAny(lower, "book", "appointment", "schedule", "reserve") {
		return IntentBookAppointment
	}
	if containsAny(lower, "cancel", "reschedule") {
		return IntentModifyAppointment
	}
	if containsAny(lower, "speak to", "talk to", "human") {
		return IntentTransferToAgent
	}
	if containsAny(lower, "information", "hours", "location") {
		return IntentGeneralInquiry
	}
	return IntentUnknown
}

func containsAny(lower string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
