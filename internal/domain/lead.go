package domain

import "time"

// RawLead is one record as the source endpoint returns it, before cleaning.
type RawLead struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	SignupDate string `json:"signup_date"` // "2006-01-02 15:04:05"
	Source     string `json:"source"`
}

// Lead is the canonical cleaned record. Email is the identity: lowercase,
// unique across the store. Contact fields and the quality score are frozen at
// first capture; repeat sightings only touch UpdatedAt.
type Lead struct {
	ID           int64
	Email        string
	Phone        string // normalized (E.164 when valid, digits-only otherwise)
	PhoneCountry string
	PhoneValid   bool
	FirstName    string
	LastName     string
	EmailValid   bool
	EmailDomain  string
	QualityScore int
	Source       string
	SourceID     string
	SignupAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Delivered        bool
	DeliveredAt      *time.Time
	CRMContactID     string
	DeliveryAttempts int
}
