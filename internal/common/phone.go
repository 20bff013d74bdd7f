package common

import "strings"

// NormalizePhone canonicalizes a mobile number into +98 E.164 form.
// Accepted inputs: "+98912...", "0098912...", "0912..." and bare "912...".
func NormalizePhone(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(cleaned, "+98"):
		cleaned = cleaned[3:]
	case strings.HasPrefix(cleaned, "0098"):
		cleaned = cleaned[4:]
	case strings.HasPrefix(cleaned, "0"):
		cleaned = cleaned[1:]
	}
	if len(cleaned) != 10 || !strings.HasPrefix(cleaned, "9") {
		return "", false
	}
	return "+98" + cleaned, true
}
