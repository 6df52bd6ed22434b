package telephony

import (
	"bytes"
	"encoding/xml"

	"voiceagent-platform/internal/agent"
)

// Minimal TwiML builder. It intentionally avoids any provider SDK dependency;
// encoding/xml also takes care of escaping spoken text.
//
// Voices: greetings use the standard Polly voice, in-conversation turns the
// neural one. Both values come from the original call flow and are part of
// how the agent sounds, so they are fixed here rather than configured.

const (
	greetingVoice = "Polly.Joanna"
	turnVoice     = "Polly.Joanna-Neural"
)

type voiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Timeout       int      `xml:"timeout,attr"`
	Language      string   `xml:"language,attr"`
	SpeechModel   string   `xml:"speechModel,attr,omitempty"`
	Enhanced      string   `xml:"enhanced,attr,omitempty"`
	Hints         string   `xml:"hints,attr,omitempty"`
	Say           twimlSay `xml:"Say"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Text    string   `xml:",chardata"`
}

func gather(action string, timeout int, say twimlSay) twimlGather {
	return twimlGather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		SpeechTimeout: "auto",
		Timeout:       timeout,
		Language:      "en-US",
		Say:           say,
	}
}

func enhancedGather(action string, timeout int, hints string, say twimlSay) twimlGather {
	g := gather(action, timeout, say)
	g.SpeechModel = "phone_call"
	g.Enhanced = "true"
	g.Hints = hints
	return g
}

// RenderGreeting answers a fresh inbound call: greet, re-listen once on
// silence, then say goodbye and hang up.
func RenderGreeting(turnURL, businessName string) (string, error) {
	r := voiceResponse{Verbs: []any{
		enhancedGather(turnURL, 8, "appointment, book, schedule, meeting, consultation, service, yes, no, help",
			twimlSay{Voice: greetingVoice, Text: "Hello! Thank you for calling " + businessName + ". I'm your A I agent, and I'm here to help you. How can I assist you today?"}),
		enhancedGather(turnURL, 8, "",
			twimlSay{Voice: greetingVoice, Text: "I didn't quite catch that. Please tell me how I can help you."}),
		twimlSay{Voice: greetingVoice, Text: "Thank you for calling. Goodbye."},
		twimlHangup{},
	}}
	return render(r)
}

// RenderTurn maps a turn result to one of the three voice-response shapes:
// re-listen, confirm-and-end, or generic-end. The re-listen shape carries the
// full escalation ladder: primary gather, shorter "Are you still there?"
// gather, then goodbye and hangup if no speech ever arrives.
func RenderTurn(res agent.TurnResult, turnURL string) (string, error) {
	var r voiceResponse

	switch res.Action {
	case agent.ActionContinue:
		r.Verbs = []any{
			enhancedGather(turnURL, 6, "appointment,book,yes,no,Monday,Tuesday,Wednesday,Thursday,Friday",
				twimlSay{Voice: turnVoice, Text: res.Say}),
			gather(turnURL, 5, twimlSay{Voice: turnVoice, Text: "Are you still there?"}),
			twimlSay{Voice: turnVoice, Text: "Thank you for calling. Goodbye."},
			twimlHangup{},
		}
	case agent.ActionReprompt:
		r.Verbs = []any{
			enhancedGather(turnURL, 5, "", twimlSay{Voice: turnVoice, Text: res.Say}),
			twimlSay{Voice: turnVoice, Text: "Thank you for calling. Goodbye."},
			twimlHangup{},
		}
	case agent.ActionConfirmEnd, agent.ActionEnd:
		r.Verbs = []any{
			twimlSay{Voice: turnVoice, Text: res.Say},
			twimlHangup{},
		}
	default:
		// Unknown actions still have to speak something.
		r.Verbs = []any{
			twimlSay{Voice: turnVoice, Text: "Thank you for calling. Goodbye."},
			twimlHangup{},
		}
	}
	return render(r)
}

// RenderApology is the last line of defense: any failure inside turn handling
// still yields an apology plus a re-prompt, never silence or a dead call.
func RenderApology(turnURL string) (string, error) {
	r := voiceResponse{Verbs: []any{
		twimlSay{Voice: turnVoice, Text: "I apologize. Let me help you. What can I do for you?"},
		gather(turnURL, 5, twimlSay{Voice: turnVoice, Text: "How can I assist you?"}),
		twimlSay{Voice: turnVoice, Text: "Thank you for calling. Goodbye."},
		twimlHangup{},
	}}
	return render(r)
}

// RenderServiceDown covers failures before a session even exists.
func RenderServiceDown(businessName string) (string, error) {
	r := voiceResponse{Verbs: []any{
		twimlSay{Voice: greetingVoice, Text: "Hello! Thank you for calling " + businessName + ". Our system is currently being updated. Please try again in a few minutes."},
		twimlHangup{},
	}}
	return render(r)
}

// RenderSMSReply builds the auto-response for an inbound text.
func RenderSMSReply(text string) (string, error) {
	return render(voiceResponse{Verbs: []any{twimlMessage{Text: text}}})
}

func render(r voiceResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
