package model

import "strings"

// Contact is a normalized contact parsed from an ingested batch.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone"` // digits only
	Email string `json:"email,omitempty"`
}

// NormalizePhone reduces a raw phone value to its digits. It returns ""
// when no digits remain, which callers treat as unparsable. Normalizing an
// already-normalized digit string returns it unchanged.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
