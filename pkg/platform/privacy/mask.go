package privacy

import (
	"regexp"
	"strings"
)

// MaskToken replaces sensitive values in persisted payloads.
const MaskToken = "[REDACTED]"

// DefaultMaskedFields are the payload keys treated as personal data unless configured otherwise.
var DefaultMaskedFields = []string{"email", "phone", "document_id", "requester_contact", "subject"}

// DefaultFreeTextFields are payload keys holding operator or subject supplied prose.
var DefaultFreeTextFields = []string{"reason", "note"}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-\s]{7,}[0-9]`)
)

// Masker applies the configured masking policy to key/value payloads.
//
// Keys in the masked set are replaced with MaskToken when capturePII is true and
// dropped entirely when it is false. Every other value is scanned for e-mail
// addresses; free-text keys are additionally scanned for phone numbers. Phone
// scanning is limited to free text because identifiers and timestamps look like
// digit runs.
type Masker struct {
	masked     map[string]struct{}
	freeText   map[string]struct{}
	capturePII bool
}

// NewMasker builds a Masker. Field names are matched case-insensitively.
func NewMasker(maskedFields []string, capturePII bool) *Masker {
	m := &Masker{
		masked:     toSet(maskedFields),
		freeText:   toSet(DefaultFreeTextFields),
		capturePII: capturePII,
	}
	return m
}

// CapturePII reports whether masked fields are retained (as MaskToken) in payloads.
func (m *Masker) CapturePII() bool {
	return m.capturePII
}

// Mask returns a copy of payload with the policy applied. The input is not modified.
func (m *Masker) Mask(payload map[string]string) map[string]string {
	if len(payload) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		key := strings.ToLower(k)
		if _, sensitive := m.masked[key]; sensitive {
			if m.capturePII {
				out[k] = MaskToken
			}
			continue
		}
		v = emailPattern.ReplaceAllString(v, MaskToken)
		if _, prose := m.freeText[key]; prose {
			v = phonePattern.ReplaceAllString(v, MaskToken)
		}
		out[k] = v
	}
	return out
}

// MaskValue scans a single value outside any payload, such as an actor name,
// for e-mail addresses.
func (m *Masker) MaskValue(v string) string {
	return emailPattern.ReplaceAllString(v, MaskToken)
}

// RedactText strips e-mail addresses and phone numbers from free text.
func RedactText(s string) string {
	s = emailPattern.ReplaceAllString(s, MaskToken)
	return phonePattern.ReplaceAllString(s, MaskToken)
}

// ContainsPII reports whether s contains an e-mail address or phone number.
func ContainsPII(s string) bool {
	return emailPattern.MatchString(s) || phonePattern.MatchString(s)
}

func toSet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
