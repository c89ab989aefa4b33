// Package participant holds the canonical certification participant record
// produced by dataset ingestion.
package participant

import (
	"strings"
	"time"
)

// Grade is the normalized final grade
type Grade string

const (
	GradePass    Grade = "Pass"
	GradeFail    Grade = "Fail"
	GradePending Grade = "Pending"
)

// IsValid checks if the grade is one of the three known values
func (g Grade) IsValid() bool {
	switch g {
	case GradePass, GradeFail, GradePending:
		return true
	}
	return false
}

// DateStatus records how a timestamp was obtained from the source cell
type DateStatus string

const (
	DateParsed      DateStatus = "parsed"
	DateUnparseable DateStatus = "unparseable"
	DateAbsent      DateStatus = "absent"
)

// DefaultCountry and DefaultPartnerCode fill empty cells
const (
	DefaultCountry     = "Unknown"
	DefaultPartnerCode = "UNKNOWN"
)

// Assessment is the fraud annotation of a record
type Assessment struct {
	IsSuspicious    bool   `json:"is_suspicious"`
	SuspicionReason string `json:"suspicion_reason"`
	RiskScore       int    `json:"risk_score"`
}

// Record is one participant row of a dataset version. Records are built once
// per ingestion and not modified after fraud enrichment.
type Record struct {
	RowNumber int `json:"row_number"`

	Email            string `json:"email"`
	EmailSynthesized bool   `json:"email_synthesized"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	Country          string `json:"country"`

	AcceptedMembership bool `json:"accepted_membership"`
	AcceptedMarketing  bool `json:"accepted_marketing"`

	WalletAddress string `json:"wallet_address"`
	PartnerCode   string `json:"partner_code"`

	PercentageCompleted int   `json:"percentage_completed"`
	FinalScore          int   `json:"final_score"`
	FinalGrade          Grade `json:"final_grade"`

	CreatedAt         time.Time  `json:"created_at"`
	CreatedAtStatus   DateStatus `json:"created_at_status"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CompletedAtStatus DateStatus `json:"completed_at_status"`

	CAStatus string `json:"ca_status"`

	Assessment
}

// WalletKey is the wallet address used for duplicate detection: trimmed and
// lowercased, empty when the record has no wallet.
func (r Record) WalletKey() string {
	return strings.ToLower(strings.TrimSpace(r.WalletAddress))
}

// CompletionTime is completion minus creation. ok is false unless both
// timestamps were read from the source, so fallback instants never feed
// timing heuristics.
func (r Record) CompletionTime() (d time.Duration, ok bool) {
	if r.CompletedAt == nil || r.CreatedAtStatus != DateParsed || r.CompletedAtStatus != DateParsed {
		return 0, false
	}
	return r.CompletedAt.Sub(r.CreatedAt), true
}

// HasTrustedDates reports whether no timestamp fell back to ingestion time
func (r Record) HasTrustedDates() bool {
	return r.CreatedAtStatus != DateUnparseable && r.CompletedAtStatus != DateUnparseable
}
