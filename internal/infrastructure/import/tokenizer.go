package csvimport

import "strings"

// Tokenizer splits one physical line into fields. A double quote opens a
// quoted section only at the start of a field; inside it a doubled quote is a
// literal quote and the delimiter is not a boundary. Fields are trimmed.
// Line breaks inside quoted fields are not supported.
type Tokenizer struct {
	Delimiter rune
}

// NewTokenizer returns a tokenizer for delimiter, defaulting to comma
func NewTokenizer(delimiter rune) Tokenizer {
	if delimiter == 0 {
		delimiter = ','
	}
	return Tokenizer{Delimiter: delimiter}
}

// Split tokenizes line
func (t Tokenizer) Split(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
		quoted   bool // current field had an opening quote
	)
	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuotes && r == '"':
			if i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			inQuotes = false
		case r == '"' && !quoted && strings.TrimSpace(current.String()) == "":
			current.Reset()
			inQuotes = true
			quoted = true
		case r == t.Delimiter && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
			quoted = false
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

// EncodeField quotes value when it contains the delimiter or a quote
func (t Tokenizer) EncodeField(value string) string {
	if !strings.ContainsRune(value, t.Delimiter) && !strings.ContainsRune(value, '"') {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// Join encodes fields into one line
func (t Tokenizer) Join(fields []string) string {
	encoded := make([]string, len(fields))
	for i, f := range fields {
		encoded[i] = t.EncodeField(f)
	}
	return strings.Join(encoded, string(t.Delimiter))
}
