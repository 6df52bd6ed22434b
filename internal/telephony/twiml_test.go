package telephony

import (
	"strings"
	"testing"

	"voiceagent-platform/internal/agent"
)

const testTurnURL = "https://agent.example.com/webhooks/twilio/voice/turn?callId=call-1"

func TestRenderGreeting(t *testing.T) {
	out, err := RenderGreeting(testTurnURL, "PostSavage.ai")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"<Response>",
		"Thank you for calling PostSavage.ai",
		`voice="Polly.Joanna"`,
		`input="speech"`,
		`speechModel="phone_call"`,
		`enhanced="true"`,
		"<Hangup>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("greeting missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "<Gather") != 2 {
		t.Fatalf("greeting must re-listen exactly once:\n%s", out)
	}
}

func TestRenderTurn_ContinueCarriesEscalationLadder(t *testing.T) {
	out, err := RenderTurn(agent.TurnResult{Action: agent.ActionContinue, Say: "What date works?"}, testTurnURL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Count(out, "<Gather") != 2 {
		t.Fatalf("continue must gather twice:\n%s", out)
	}
	for _, want := range []string{
		"What date works?",
		"Are you still there?",
		"Thank you for calling. Goodbye.",
		`voice="Polly.Joanna-Neural"`,
		"<Hangup>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("continue missing %q:\n%s", want, out)
		}
	}
	// Only the primary gather is enhanced.
	if strings.Count(out, `enhanced="true"`) != 1 {
		t.Fatalf("expected exactly one enhanced gather:\n%s", out)
	}
}

func TestRenderTurn_RepromptGathersOnce(t *testing.T) {
	out, err := RenderTurn(agent.TurnResult{Action: agent.ActionReprompt, Say: "Are you still there?"}, testTurnURL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Count(out, "<Gather") != 1 {
		t.Fatalf("reprompt must gather once:\n%s", out)
	}
	if !strings.Contains(out, "<Hangup>") {
		t.Fatalf("reprompt must end in hangup:\n%s", out)
	}
}

func TestRenderTurn_EndShapes(t *testing.T) {
	for _, action := range []agent.TurnAction{agent.ActionConfirmEnd, agent.ActionEnd} {
		out, err := RenderTurn(agent.TurnResult{Action: action, Say: "Goodbye now."}, testTurnURL)
		if err != nil {
			t.Fatalf("render %s: %v", action, err)
		}
		if strings.Contains(out, "<Gather") {
			t.Fatalf("%s must not gather:\n%s", action, out)
		}
		if !strings.Contains(out, "Goodbye now.") || !strings.Contains(out, "<Hangup>") {
			t.Fatalf("%s must say and hang up:\n%s", action, out)
		}
	}
}

func TestRenderTurn_UnknownActionStillSpeaks(t *testing.T) {
	out, err := RenderTurn(agent.TurnResult{Action: "bogus"}, testTurnURL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Thank you for calling. Goodbye.") {
		t.Fatalf("unknown action must still speak:\n%s", out)
	}
}

func TestRenderEscapesSpokenText(t *testing.T) {
	out, err := RenderTurn(agent.TurnResult{Action: agent.ActionEnd, Say: `Tom & Jerry's <slot>`}, testTurnURL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "<slot>") {
		t.Fatalf("spoken text must be escaped:\n%s", out)
	}
	if !strings.Contains(out, "&amp;") {
		t.Fatalf("ampersand must be escaped:\n%s", out)
	}
}

func TestRenderSMSReply(t *testing.T) {
	out, err := RenderSMSReply("Thanks for texting!")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Message>Thanks for texting!</Message>") {
		t.Fatalf("unexpected sms reply:\n%s", out)
	}
}
