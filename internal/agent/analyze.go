package agent

import (
	"strings"

	"voiceagent-platform/internal/extract"
	"voiceagent-platform/internal/store"
)

// Analysis is the deeper read of a whole conversation used by the dashboard
// and the transfer flow, as opposed to the per-utterance turn classifiers.
type Analysis struct {
	Sentiment       store.Sentiment `json:"sentiment"`
	Intent          string          `json:"intent"`
	ShouldTransfer  bool            `json:"shouldTransfer"`
	SuggestedAction string          `json:"suggestedAction"`
}

const (
	SuggestedContinue        = "continue"
	SuggestedTransferToAgent = "transfer_to_agent"
	SuggestedBookAppointment = "book_appointment"
	SuggestedEndCall         = "end_call"
)

// AnalyzeConversation classifies a transcript with the richer conversation
// vocabularies. Sentiment is scored over everything the customer said; intent
// comes from their latest utterance.
func AnalyzeConversation(transcript []store.ConversationMessage) Analysis {
	var userText strings.Builder
	lastUser := ""
	for _, m := range transcript {
		if m.Role != "user" {
			continue
		}
		userText.WriteString(m.Content)
		userText.WriteString("\n")
		lastUser = m.Content
	}

	out := Analysis{
		Sentiment:       extract.ConversationSentiment(userText.String()),
		Intent:          extract.ConversationIntent(lastUser),
		SuggestedAction: SuggestedContinue,
	}

	switch {
	case out.Intent == extract.IntentTransferToAgent:
		out.ShouldTransfer = true
		out.SuggestedAction = SuggestedTransferToAgent
	case out.Sentiment == store.SentimentNegative:
		// A customer this far into frustration should reach a human.
		out.ShouldTransfer = true
		out.SuggestedAction = SuggestedTransferToAgent
	case out.Intent == extract.IntentBookAppointment:
		out.SuggestedAction = SuggestedBookAppointment
	case lastUser != "" && wantsToEnd(lastUser):
		out.SuggestedAction = SuggestedEndCall
	}
	return out
}
