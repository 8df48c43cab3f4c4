package rank

import (
	"strings"

	"leadsync-engine/internal/clean"
	"leadsync-engine/internal/domain"
)

// Major free webmail providers; a custom domain is worth extra points.
var genericProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
}

// Score computes the 0-100 quality score from the cleaned fields.
// The formula is fixed: downstream tagging and reporting depend on the
// exact values.
//
//	base 50
//	+20 valid email
//	+15 phone with >= 10 digits present
//	+10 phone fully validated
//	+10 email domain not a generic webmail provider
//	 -5 source empty, "test" or "unknown"
func Score(lead domain.Lead) int {
	score := 50

	if lead.EmailValid {
		score += 20
	}

	if digitCount(lead.Phone) >= 10 {
		score += 15
	}
	if lead.PhoneValid {
		score += 10
	}

	if dom := clean.EmailDomain(lead.Email); dom != "" && !genericProviders[dom] {
		score += 10
	}

	switch strings.ToLower(strings.TrimSpace(lead.Source)) {
	case "", "test", "unknown":
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Tags derives the CRM tags for a lead: a quality band, provenance markers
// and a signup month bucket.
func Tags(lead domain.Lead) []string {
	var tags []string

	switch {
	case lead.QualityScore >= 80:
		tags = append(tags, "high-quality")
	case lead.QualityScore >= 50:
		tags = append(tags, "medium-quality")
	default:
		tags = append(tags, "low-quality")
	}

	tags = append(tags, "wordpress-lead", "auto-sync")

	if !lead.SignupAt.IsZero() {
		tags = append(tags, "signup-"+lead.SignupAt.Format("2006-01"))
	}
	return tags
}
