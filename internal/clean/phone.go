package clean

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// CleanPhone parses the number against defaultRegion and returns
// (normalized, region, valid). Valid numbers come back in E.164; anything that
// fails parsing or validation degrades to digits-only with an empty region
// rather than being discarded.
func CleanPhone(raw, defaultRegion string) (string, string, bool) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", "", false
	}

	parsed, err := phonenumbers.Parse(phone, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return digitsOnly(phone), "", false
	}

	return phonenumbers.Format(parsed, phonenumbers.E164),
		phonenumbers.GetRegionCodeForNumber(parsed),
		true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
