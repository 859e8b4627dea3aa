package util

import (
	"regexp"
	"strings"
)

var nonPhoneChars = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone tries to normalize user input into E.164-like format.
// Vendors are Indian numbers; bare 10-digit mobiles get the +91 prefix.
func NormalizePhone(raw string) string {
	s := nonPhoneChars.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = "+91" + s[1:]
	case len(s) == 10 && !strings.HasPrefix(s, "+"):
		s = "+91" + s
	case strings.HasPrefix(s, "91") && len(s) == 12:
		s = "+" + s
	}

	return s
}
