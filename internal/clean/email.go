package clean

import (
	"regexp"
	"strings"
)

// Loose RFC 5322 subset: printable local part, dotted domain. Good enough to
// flag junk without rejecting real-world addresses.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// CleanEmail lowercases and trims the address and reports whether it looks
// valid. Invalid input still comes back normalized so the record is not
// silently dropped upstream.
func CleanEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	if !emailRe.MatchString(email) {
		return email, false
	}
	// no consecutive dots, no leading/trailing dot in the local part
	local := email[:strings.IndexByte(email, '@')]
	if strings.Contains(email, "..") || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return email, false
	}
	return email, true
}

// EmailDomain returns the part after '@', or "" when there is none.
func EmailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}
