package sync

import (
	"strconv"
	"time"

	"leadsync-engine/internal/clean"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/rank"
	"leadsync-engine/internal/source"
)

// buildLead turns one raw source record into a cleaned, scored lead.
// Unparsable fields degrade to best-effort values with their validity flags
// off; nothing here fails a record outright.
func buildLead(raw domain.RawLead, defaultRegion string, now time.Time) domain.Lead {
	var lead domain.Lead

	lead.Email, lead.EmailValid = clean.CleanEmail(raw.Email)
	lead.EmailDomain = clean.EmailDomain(lead.Email)
	lead.Phone, lead.PhoneCountry, lead.PhoneValid = clean.CleanPhone(raw.Phone, defaultRegion)
	lead.FirstName = raw.FirstName
	lead.LastName = raw.LastName

	if t, err := time.Parse(source.TimeFormat, raw.SignupDate); err == nil {
		lead.SignupAt = t
	} else {
		lead.SignupAt = now
	}

	if raw.ID > 0 {
		lead.SourceID = strconv.FormatInt(raw.ID, 10)
	}

	// score against the declared source label (a missing one is a penalty),
	// then default the stored provenance
	lead.Source = raw.Source
	lead.QualityScore = rank.Score(lead)
	if lead.Source == "" {
		lead.Source = "wordpress"
	}

	return lead
}
