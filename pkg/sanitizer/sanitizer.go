package sanitizer

import (
	"meistro/pkg/locale"
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// E.164 already, or empty. Anything else is rejected before parsing.
var reCandidatePhone = regexp.MustCompile(`^\+?[0-9()\s\-]{7,20}$`)

// TrimAndNormalize trims leading/trailing whitespace and collapses interior
// whitespace runs to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName normalizes a contact name for storage.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNote normalizes a free-text booking note.
func NormalizeNote(note string) string {
	return TrimAndNormalize(note)
}

// NormalizeMessageText trims a chat message but preserves interior whitespace
// and newlines the sender typed.
func NormalizeMessageText(text string) string {
	return strings.TrimSpace(text)
}

// NormalizePhone converts a phone number to E.164 format. Returns an empty
// string when the input cannot be parsed as a valid number in any supported
// region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" || !reCandidatePhone.MatchString(phone) {
		return ""
	}

	for _, region := range locale.Regions() {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if !phonenumbers.IsValidNumber(parsedNumber) {
			continue
		}
		return phonenumbers.Format(parsedNumber, phonenumbers.E164)
	}
	return ""
}
