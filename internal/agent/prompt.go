package agent

import (
	"fmt"
	"strings"

	"voiceagent-platform/internal/store"
)

// systemPromptTemplate drives the reply generator. The booking status block
// is rebuilt every turn so the model never re-asks for collected fields.
const systemPromptTemplate = `You are a warm, professional AI assistant for {{BUSINESS}} who helps book appointments.

CURRENT BOOKING STATUS:
{{APPOINTMENT_STATE}}

YOUR JOB:
1. If ALL information is collected (Name, Date, SPECIFIC Time like "2:00 PM") → Say: "Perfect! Your appointment is confirmed for [Date] at [Time], [Name]. I'll text you the details. Anything else I can help with?"
2. If information is MISSING or VAGUE → Ask for only ONE missing piece in a friendly way
3. When customer gives you info → Acknowledge it warmly ("Great!", "Got it!", "Perfect!")

IMPORTANT TIME RULES:
- "morning" or "afternoon" is NOT ENOUGH - you MUST ask for a specific time
- Ask like: "What specific time works best? For example, 10 AM, 2:30 PM, etc."
- Only accept times like: "10:00 AM", "2 PM", "3:30 PM", etc.

RULES:
- NEVER ask for info you already have (check CURRENT BOOKING STATUS above)
- Keep it brief (1-2 sentences max)
- Sound human and warm, not robotic
- If they say "no" or "that's it" → Thank them and end call
`

func (p *Processor) systemPrompt(name string, details store.AppointmentDetails, complete bool) string {
	state := fmt.Sprintf(
		"\n      Name: %s\n      Date: %s\n      Time: %s\n      Status: %s\n      ",
		orMissing(name),
		orMissing(details.Date),
		orMissing(details.Time),
		statusLine(complete),
	)
	prompt := strings.ReplaceAll(systemPromptTemplate, "{{BUSINESS}}", p.businessName)
	return strings.ReplaceAll(prompt, "{{APPOINTMENT_STATE}}", state)
}

func orMissing(v string) string {
	if v == "" {
		return "NOT PROVIDED YET"
	}
	return v
}

func statusLine(complete bool) string {
	if complete {
		return "COMPLETE - Confirm booking now!"
	}
	return "INCOMPLETE - Ask for missing info"
}

// fallbackReply is the deterministic reply used when the generator is down.
// Priority: confirm a complete booking, then ask for the first missing field.
func fallbackReply(name string, details store.AppointmentDetails, complete bool) string {
	switch {
	case complete:
		return fmt.Sprintf("Perfect! Your appointment is confirmed for %s at %s. I'll text you the details. Anything else?", details.Date, details.Time)
	case name == "":
		return "I'd love to help you book an appointment. May I have your name?"
	case details.Date == "":
		return fmt.Sprintf("Great, %s! What date would you like?", name)
	case details.Time == "":
		return "What specific time works best? For example, 10 AM, 2:30 PM, etc."
	default:
		return "How can I help you today?"
	}
}
