package importapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/certhub/backend/internal/domain/participant"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// synthesizedEmailDomain is used for rows whose email cell is empty
const synthesizedEmailDomain = "noemail.com"

// RowNormalizer turns a tokenized row into a participant record using a
// resolved column map. The zero time for now means time.Now at each call.
type RowNormalizer struct {
	columns csvimport.ColumnMap
	now     time.Time
}

// NewRowNormalizer creates a normalizer for one document
func NewRowNormalizer(columns csvimport.ColumnMap, now time.Time) RowNormalizer {
	return RowNormalizer{columns: columns, now: now}
}

// Normalize builds the record for one data row. rowNumber is the line number
// reported to users and ordinal is the 1-based position among data rows.
func (n RowNormalizer) Normalize(fields []string, rowNumber, ordinal int) participant.Record {
	now := n.now
	if now.IsZero() {
		now = time.Now()
	}
	value := func(f csvimport.Field) string {
		return n.columns.Value(fields, f)
	}

	r := participant.Record{
		RowNumber:           rowNumber,
		Email:               value(csvimport.FieldEmail),
		FirstName:           value(csvimport.FieldFirstName),
		LastName:            value(csvimport.FieldLastName),
		Phone:               value(csvimport.FieldPhone),
		Country:             value(csvimport.FieldCountry),
		AcceptedMembership:  csvimport.ParseBool(value(csvimport.FieldMembership)),
		AcceptedMarketing:   csvimport.ParseBool(value(csvimport.FieldMarketing)),
		WalletAddress:       value(csvimport.FieldWallet),
		PartnerCode:         partnerCode(value(csvimport.FieldPartnerCode), value(csvimport.FieldPartnerName)),
		PercentageCompleted: nonNegative(csvimport.ParseLooseInt(value(csvimport.FieldPercentage))),
		FinalScore:          nonNegative(csvimport.ParseLooseInt(value(csvimport.FieldFinalScore))),
		FinalGrade:          csvimport.ParseGrade(value(csvimport.FieldFinalGrade)),
		CAStatus:            value(csvimport.FieldCAStatus),
	}

	if r.Email == "" {
		r.Email = fmt.Sprintf("unknown_%d@%s", ordinal, synthesizedEmailDomain)
		r.EmailSynthesized = true
	}
	if r.Country == "" {
		r.Country = participant.DefaultCountry
	}

	created := csvimport.ParseDate(value(csvimport.FieldCreatedAt), now)
	r.CreatedAtStatus = created.Status
	if created.Status != participant.DateAbsent {
		r.CreatedAt = created.Time
	}

	completed := csvimport.ParseDate(value(csvimport.FieldCompletedAt), now)
	r.CompletedAtStatus = completed.Status
	if completed.Status != participant.DateAbsent {
		t := completed.Time
		r.CompletedAt = &t
	}

	return r
}

// partnerCode takes the code cell, or the partner cell when the code cell is
// empty, and keeps the part before " - " of values like "HEDERA01 - Hedera".
func partnerCode(code, partner string) string {
	if code == "" {
		code = partner
	}
	code, _, _ = strings.Cut(code, " - ")
	code = strings.TrimSpace(code)
	if code == "" {
		return participant.DefaultPartnerCode
	}
	return code
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
