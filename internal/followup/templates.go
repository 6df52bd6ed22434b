package followup

import "fmt"

// Scenario identifiers accepted by Schedule. Unknown scenarios fall back to
// a generic message rather than failing.
const (
	ScenarioAppointmentBooked   = "appointment_booked"
	ScenarioReminder24h         = "appointment_reminder_24h"
	ScenarioMissedCall          = "missed_call"
	ScenarioGeneralInquiry      = "general_inquiry"
	ScenarioTransferredToAgent  = "transferred_to_agent"
	ScenarioNoAppointmentBooked = "no_appointment_booked"
)

// TemplateData carries the substitutions a template may use. Fields a
// scenario does not need are ignored.
type TemplateData struct {
	Name        string
	Date        string
	Time        string
	PhoneNumber string
	Resolved    bool
}

// Message renders the SMS body for a scenario.
func Message(scenario, businessName string, data TemplateData) string {
	switch scenario {
	case ScenarioAppointmentBooked:
		return fmt.Sprintf(
			"Hi %s! 🎉 Your appointment is confirmed for %s at %s. We'll send you a reminder 24 hours before. Reply CANCEL to cancel or RESCHEDULE to change. - %s",
			data.Name, data.Date, data.Time, businessName)
	case ScenarioReminder24h:
		return fmt.Sprintf(
			"Hi %s! Reminder: Your appointment is tomorrow (%s) at %s. Reply CONFIRM if you're coming or RESCHEDULE to change. See you soon! - %s",
			data.Name, data.Date, data.Time, businessName)
	case ScenarioMissedCall:
		return fmt.Sprintf(
			"Hi! We noticed you called %s earlier. We'd love to help you! Reply with your question or call us back at %s. - %s",
			businessName, data.PhoneNumber, businessName)
	case ScenarioGeneralInquiry:
		return fmt.Sprintf(
			"Hi! Thanks for calling %s. %sWe're here if you have any more questions. Reply to this message or call us anytime! - %s",
			businessName, optionalName(data.Name), businessName)
	case ScenarioTransferredToAgent:
		name := data.Name
		if name == "" {
			name = "there"
		}
		tail := "Let us know if you need anything else."
		if data.Resolved {
			tail = "We hope we resolved your issue!"
		}
		return fmt.Sprintf("Hi %s! Thanks for speaking with our team. %s Reply anytime! - %s", name, tail, businessName)
	case ScenarioNoAppointmentBooked:
		return fmt.Sprintf(
			"Hi! Thanks for your interest in %s. %sReady to book an appointment? Reply BOOK or call us back. We're here to help! - %s",
			businessName, optionalName(data.Name), businessName)
	default:
		return fmt.Sprintf("Hi! Thanks for calling %s. We're here if you need anything. Reply anytime!", businessName)
	}
}

func optionalName(name string) string {
	if name == "" {
		return ""
	}
	return name + ", "
}
