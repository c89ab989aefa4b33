package csvimport

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const byteOrderMark = '\uFEFF'

var (
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// DecodeText turns raw upload bytes into text. UTF-16 input must carry a
// byte-order mark; valid UTF-8 is returned unchanged; anything else is decoded
// with the fallback single-byte charset (windows-1252 when empty).
func DecodeText(data []byte, fallbackCharset string) (string, error) {
	if bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		return string(decoded), nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, err := lookupCharset(fallbackCharset)
	if err != nil {
		return "", err
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return string(decoded), nil
}

func lookupCharset(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return charmap.Windows1252, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported charset %q", ErrInvalidEncoding, name)
	}
	return enc, nil
}

// StripBOM removes a leading byte-order-mark code point
func StripBOM(text string) string {
	return strings.TrimPrefix(text, string(byteOrderMark))
}

// SplitLines splits on \r\n, \n or \r and drops lines that are blank after trimming
func SplitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = appendLine(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = appendLine(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	return appendLine(lines, text[start:])
}

func appendLine(lines []string, line string) []string {
	if strings.TrimSpace(line) == "" {
		return lines
	}
	return append(lines, line)
}

// DetectDelimiter picks ';' or '\t' when strictly more frequent than both
// other candidates on the header line, and ',' otherwise.
func DetectDelimiter(headerLine string) rune {
	commas := strings.Count(headerLine, ",")
	semis := strings.Count(headerLine, ";")
	tabs := strings.Count(headerLine, "\t")

	switch {
	case semis > commas && semis > tabs:
		return ';'
	case tabs > commas && tabs > semis:
		return '\t'
	default:
		return ','
	}
}

// Document is normalized input ready for tokenizing
type Document struct {
	Delimiter rune
	Header    string
	Rows      []string
}

// Prepare strips the BOM, splits lines and detects the delimiter.
// Fewer than two non-blank lines yields *EmptyInputError.
func Prepare(text string) (*Document, error) {
	lines := SplitLines(StripBOM(text))
	if len(lines) < 2 {
		return nil, &EmptyInputError{Lines: len(lines)}
	}
	return &Document{
		Delimiter: DetectDelimiter(lines[0]),
		Header:    lines[0],
		Rows:      lines[1:],
	}, nil
}

// DelimiterName is a printable name for logs and stored metadata
func DelimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ';':
		return "semicolon"
	default:
		return "comma"
	}
}
