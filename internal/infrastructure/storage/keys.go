// Package storage keeps raw dataset uploads in object storage.
package storage

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const defaultFileName = "dataset.csv"

// ObjectKey builds "<prefix><timestamp>-<sanitized name>". The timestamp is
// RFC 3339 UTC with millisecond precision and ':' and '.' replaced by '-'.
func ObjectKey(prefix, fileName string, now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)

	name := SanitizeFileName(fileName)
	if name == "" {
		name = defaultFileName
	}
	return prefix + stamp + "-" + name
}

// SanitizeFileName decomposes name (NFKD), replaces every character outside
// [A-Za-z0-9._-] with '_', collapses underscore runs and trims underscores
// at both ends.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			if s := b.String(); s == "" || s[len(s)-1] != '_' {
				b.WriteByte('_')
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
