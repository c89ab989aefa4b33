package csvimport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   rune
	}{
		{name: "comma", header: "email,first name,last name", want: ','},
		{name: "semicolon majority", header: "email;first name;last name", want: ';'},
		{name: "tab majority", header: "email\tfirst name\tlast name", want: '\t'},
		{name: "semicolon beats comma", header: "a;b;c,d", want: ';'},
		{name: "tie defaults to comma", header: "a;b,c", want: ','},
		{name: "semi and tab tie", header: "a;b\tc", want: ','},
		{name: "no delimiters", header: "email", want: ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.header))
		})
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("a,b\r\nc,d\n\n   \re,f\r\rg,h")
	assert.Equal(t, []string{"a,b", "c,d", "e,f", "g,h"}, lines)
	assert.Empty(t, SplitLines(""))
	assert.Empty(t, SplitLines("\n \r\n\t"))
}

func TestPrepare(t *testing.T) {
	t.Run("strips BOM and detects delimiter", func(t *testing.T) {
		doc, err := Prepare("\uFEFFEmail;Name\na@b.com;Ann\n")
		require.NoError(t, err)
		assert.Equal(t, ';', doc.Delimiter)
		assert.Equal(t, "Email;Name", doc.Header)
		assert.Equal(t, []string{"a@b.com;Ann"}, doc.Rows)
	})

	t.Run("header only is empty input", func(t *testing.T) {
		_, err := Prepare("Email,Name\n\n")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyInput))
		var empty *EmptyInputError
		require.ErrorAs(t, err, &empty)
		assert.Equal(t, 1, empty.Lines)
		assert.Equal(t, ErrCodeImportEmptyFile, ErrorCode(err))
	})

	t.Run("blank text", func(t *testing.T) {
		_, err := Prepare("   \r\n")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestDecodeText(t *testing.T) {
	t.Run("utf-8 passes through", func(t *testing.T) {
		text, err := DecodeText([]byte("email\nzoë@example.com"), "")
		require.NoError(t, err)
		assert.Equal(t, "email\nzoë@example.com", text)
	})

	t.Run("windows-1252 fallback", func(t *testing.T) {
		raw, err := charmap.Windows1252.NewEncoder().Bytes([]byte("name\nJosé"))
		require.NoError(t, err)

		text, err := DecodeText(raw, "windows-1252")
		require.NoError(t, err)
		assert.Equal(t, "name\nJosé", text)
	})

	t.Run("utf-16 with BOM", func(t *testing.T) {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		raw, err := enc.Bytes([]byte("email,name\na@b.com,Ann"))
		require.NoError(t, err)

		text, err := DecodeText(raw, "")
		require.NoError(t, err)
		assert.Equal(t, "email,name\na@b.com,Ann", StripBOM(text))
	})

	t.Run("unknown fallback charset", func(t *testing.T) {
		_, err := DecodeText([]byte{0xff, 0x41}, "klingon")
		assert.ErrorIs(t, err, ErrInvalidEncoding)
		assert.Equal(t, ErrCodeImportInvalidEncoding, ErrorCode(err))
	})
}
