package csvimport

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/certhub/backend/internal/domain/participant"
)

// ParseBool is true for true, yes, 1 or y in any case
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y":
		return true
	}
	return false
}

// ParseLooseInt keeps only digits, '.' and '-', reads the longest leading
// decimal number and rounds half up. Text without a number yields 0.
func ParseLooseInt(s string) int {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	prefix := numericPrefix(b.String())
	if prefix == "" {
		return 0
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v = math.Floor(v + 0.5)
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// numericPrefix returns the longest prefix of s shaped like -?digits(.digits)?
// containing at least one digit.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if digits+frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	return strings.TrimSuffix(s[:i], ".")
}

// DateValue is the result of ParseDate. Unparseable values carry the
// fallback instant so downstream code stays total, but must not be trusted.
type DateValue struct {
	Time   time.Time
	Status participant.DateStatus
}

// Valid reports whether the value came from the source text
func (d DateValue) Valid() bool {
	return d.Status == participant.DateParsed
}

// clockLayouts are the time-of-day forms accepted after a day-first date
var clockLayouts = []string{"15:04", "15:04:05", "3:04PM", "3:04 PM", "3:04:05PM", "3:04:05 PM"}

// ParseDate reads flexible date text in UTC. Slash dates that start with a
// one or two digit day above 12 are read day-first (DD/MM/YYYY [HH:MM[:SS]]).
// Other text goes through a general parser. Empty text is absent; anything
// unreadable falls back to now.
func ParseDate(s string, now time.Time) DateValue {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateValue{Status: participant.DateAbsent}
	}

	if strings.Contains(s, "/") {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ' ' || r == '\t' })
		if len(parts) > 0 {
			if day, ok := dayOfMonth(parts[0]); ok && day > 12 {
				if t, ok := dayFirst(parts, day); ok {
					return DateValue{Time: t, Status: participant.DateParsed}
				}
				return DateValue{Time: now, Status: participant.DateUnparseable}
			}
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return DateValue{Time: now, Status: participant.DateUnparseable}
	}
	return DateValue{Time: t.UTC(), Status: participant.DateParsed}
}

// dayOfMonth accepts one or two digits between 1 and 31
func dayOfMonth(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 31 {
		return 0, false
	}
	return n, true
}

func dayFirst(parts []string, day int) (time.Time, bool) {
	if len(parts) < 3 {
		return time.Time{}, false
	}
	month, err1 := strconv.Atoi(parts[1])
	year, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%04d-%02d-%02d", year, month, day))
	if err != nil {
		return time.Time{}, false
	}
	if len(parts) == 3 {
		return t, true
	}

	clock := strings.Join(parts[3:], " ")
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return t.Add(time.Duration(c.Hour())*time.Hour +
				time.Duration(c.Minute())*time.Minute +
				time.Duration(c.Second())*time.Second), true
		}
	}
	return time.Time{}, false
}

// ParseGrade maps anything containing "pass" to Pass, exactly "fail" or
// "failed" to Fail and everything else to Pending.
func ParseGrade(s string) participant.Grade {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(v, "pass"):
		return participant.GradePass
	case v == "fail" || v == "failed":
		return participant.GradeFail
	default:
		return participant.GradePending
	}
}
