package csvimport

import "strings"

// Field is a canonical participant column
type Field string

const (
	FieldEmail       Field = "email"
	FieldFirstName   Field = "firstName"
	FieldLastName    Field = "lastName"
	FieldPhone       Field = "phone"
	FieldCountry     Field = "country"
	FieldMembership  Field = "membership"
	FieldMarketing   Field = "marketing"
	FieldWallet      Field = "wallet"
	FieldPartnerCode Field = "partnerCode"
	FieldPartnerName Field = "partnerName"
	FieldPercentage  Field = "percentage"
	FieldCreatedAt   Field = "createdAt"
	FieldCompletedAt Field = "completedAt"
	FieldFinalScore  Field = "finalScore"
	FieldFinalGrade  Field = "finalGrade"
	FieldCAStatus    Field = "caStatus"
)

// FieldSpec declares how one canonical field is found in a header row.
// Aliases are tried in header order, exact matches before substring matches.
// When nothing matches and Fallback is set, the fallback field's column is used.
type FieldSpec struct {
	Field    Field
	Aliases  []string
	Fallback Field
	Required bool
}

// Schema is an ordered set of field specs
type Schema struct {
	Fields []FieldSpec
	// WrongFileHint, when set, turns a missing required column into a
	// *WrongFileTypeError if this field resolved and the file has fewer than
	// WrongFileMaxColumns headers.
	WrongFileHint       Field
	WrongFileMaxColumns int
}

// ParticipantSchema is the participant export layout
var ParticipantSchema = Schema{
	Fields: []FieldSpec{
		{Field: FieldEmail, Aliases: []string{"email", "e-mail", "mail address", "user email"}, Required: true},
		{Field: FieldFirstName, Aliases: []string{"first name", "firstname", "first"}},
		{Field: FieldLastName, Aliases: []string{"last name", "lastname", "surname", "last"}},
		{Field: FieldPhone, Aliases: []string{"phone number", "phone", "mobile"}},
		{Field: FieldCountry, Aliases: []string{"country", "region"}},
		{Field: FieldMembership, Aliases: []string{"accepted membership", "membership", "member"}},
		{Field: FieldMarketing, Aliases: []string{"accepted marketing", "marketing"}},
		{Field: FieldWallet, Aliases: []string{"wallet address", "wallet", "hedera id", "account id"}},
		{Field: FieldPartnerName, Aliases: []string{"partner", "community"}},
		{Field: FieldPartnerCode, Aliases: []string{"code", "partner code", "partnercode", "partner id"}, Fallback: FieldPartnerName},
		{Field: FieldPercentage, Aliases: []string{"percentage completed", "percentage", "progress", "completion %"}},
		{Field: FieldCreatedAt, Aliases: []string{"created at", "start date", "registration date"}},
		{Field: FieldCompletedAt, Aliases: []string{"completed at", "completion date", "end date"}},
		{Field: FieldFinalScore, Aliases: []string{"final score", "score"}},
		{Field: FieldFinalGrade, Aliases: []string{"final grade", "grade", "result"}},
		{Field: FieldCAStatus, Aliases: []string{"ca status", "status", "state"}},
	},
	WrongFileHint:       FieldPartnerCode,
	WrongFileMaxColumns: 5,
}

// NormalizeHeader lowercases, collapses internal whitespace and trims
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// ColumnMap maps resolved fields to column indexes
type ColumnMap struct {
	Headers []string
	index   map[Field]int
}

// Index returns the column of f
func (m ColumnMap) Index(f Field) (int, bool) {
	i, ok := m.index[f]
	return i, ok
}

// Value returns the cell of f in fields, or "" when the field is unresolved
// or the row is too short.
func (m ColumnMap) Value(fields []string, f Field) string {
	i, ok := m.Index(f)
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// Resolved lists resolved fields with their header names, for logging
func (m ColumnMap) Resolved() map[string]string {
	out := make(map[string]string, len(m.index))
	for f, i := range m.index {
		out[string(f)] = m.Headers[i]
	}
	return out
}

// Resolve maps raw header cells to canonical fields
func (s Schema) Resolve(rawHeaders []string) (ColumnMap, error) {
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = NormalizeHeader(h)
	}
	m := ColumnMap{Headers: headers, index: make(map[Field]int, len(s.Fields))}

	for _, fs := range s.Fields {
		if i := FindColumn(headers, fs.Aliases); i >= 0 {
			m.index[fs.Field] = i
		}
	}
	for _, fs := range s.Fields {
		if fs.Fallback == "" {
			continue
		}
		if _, ok := m.index[fs.Field]; ok {
			continue
		}
		if i, ok := m.index[fs.Fallback]; ok {
			m.index[fs.Field] = i
		}
	}

	for _, fs := range s.Fields {
		if !fs.Required {
			continue
		}
		if _, ok := m.index[fs.Field]; ok {
			continue
		}
		if s.WrongFileHint != "" {
			if _, ok := m.index[s.WrongFileHint]; ok && len(headers) < s.WrongFileMaxColumns {
				return ColumnMap{}, &WrongFileTypeError{Headers: headers}
			}
		}
		return ColumnMap{}, &MissingColumnError{Column: displayName(fs.Field), Headers: headers}
	}
	return m, nil
}

// FindColumn returns the first normalized header equal to an alias, else the
// first header that contains an alias or is contained by one, else -1.
// Empty headers never take part in substring matching.
func FindColumn(headers []string, aliases []string) int {
	for i, h := range headers {
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, a := range aliases {
			if strings.Contains(h, a) || strings.Contains(a, h) {
				return i
			}
		}
	}
	return -1
}

func displayName(f Field) string {
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
