// Package extract parses a single caller utterance into structured
// appointment fields, plus sentiment and intent classifiers.
//
// The rules are deliberately layered regex/keyword lists, first match wins.
// They stay outside the language-model prompt so behavior is deterministic
// and testable independent of the generative model.
package extract

import (
	"regexp"
	"strings"
)

// Extracted holds whatever a single utterance yielded. Empty string means the
// utterance contained no usable value for that field.
type Extracted struct {
	Name string
	Date string
	Time string
}

var (
	// leadInPattern captures a name following common self-introductions:
	// "my name is John", "i'm John", "this is John Smith", ...
	leadInPattern = regexp.MustCompile(`(?i)(?:my name is|i'm|i am|this is|call me|it's)\s+([a-zA-Z][a-zA-Z\s]{1,30})`)

	// bareNamePattern matches an utterance that is nothing but a capitalized
	// one- or two-word name: "John" or "John Smith".
	bareNamePattern = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)$`)

	timePattern = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
)

// nameStopWords reject candidates that are conversation filler rather than a
// name ("I'm calling about..." must not yield "calling about"). The check is
// substring, case-insensitive, against the whole candidate span.
var nameStopWords = []string{
	"here", "calling", "trying", "looking", "speaking",
	"hello", "good", "great", "appointment", "book",
}

var dateKeywords = []string{
	"tomorrow", "today",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Appointment extracts name, date and time from one utterance. It never
// fails; fields with no match are left empty.
func Appointment(utterance string) Extracted {
	var out Extracted
	lower := strings.ToLower(utterance)

	for _, pattern := range []*regexp.Regexp{leadInPattern, bareNamePattern} {
		m := pattern.FindStringSubmatch(utterance)
		if m == nil || m[1] == "" {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if acceptName(candidate) {
			out.Name = capitalize(candidate)
			break
		}
	}

	// First keyword in list order wins, not utterance order. Only one date
	// field is ever set per turn.
	for _, keyword := range dateKeywords {
		if strings.Contains(lower, keyword) {
			if strings.Contains(lower, "next "+keyword) {
				out.Date = "next " + keyword
			} else {
				out.Date = keyword
			}
			break
		}
	}

	// The literal matched substring is kept verbatim ("2:30 PM" stays
	// "2:30 PM"). Vague terms like "morning" are deliberately not accepted.
	if m := timePattern.FindString(utterance); m != "" {
		out.Time = strings.TrimSpace(m)
	}

	return out
}

func acceptName(candidate string) bool {
	if len(candidate) <= 1 {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, stop := range nameStopWords {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	return true
}

// capitalize uppercases the first letter and lowercases the rest, matching
// how confirmed names are spoken back and texted.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
