// Package normalize provides field canonicalization for raw CSV values:
// trimming, numeric and boolean coercion, and timestamp parsing with
// vendor quirk correction.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Text trims leading and trailing whitespace.
func Text(s string) string {
	return strings.TrimSpace(s)
}

// Amount converts a raw value to a float64. Thousands-separator commas and
// surrounding whitespace are stripped before parsing. Empty or non-numeric
// input reports ok=false; failure is a value, not a control-flow side effect.
func Amount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Tristate is the result of boolean coercion. Callers treat Unknown as a
// validation failure where a boolean is required.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

// Bool coerces common truthy/falsy tokens, case-insensitive.
// {yes,true,1,y} are True; {no,false,0,n} are False; anything else Unknown.
func Bool(s string) Tristate {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return True
	case "no", "false", "0", "n":
		return False
	}
	return Unknown
}

// Some vendor exports write time-of-day with a dot separator ('14.16').
var hhmmDotRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{2})\b`)

// FixTimeSeparator rewrites the first dot-separated time token to use a
// colon: "01-02-2024 14.16" becomes "01-02-2024 14:16".
func FixTimeSeparator(s string) string {
	loc := hhmmDotRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	// Rewrite only the matched span.
	return s[:loc[2]] + s[loc[2]:loc[3]] + ":" + s[loc[4]:loc[5]] + s[loc[5]:]
}

// TimestampParser parses vendor timestamp strings into UTC times.
//
// DayFirst controls how ambiguous dates such as 01-02-2024 are read. The
// source region exports DD-MM-YYYY, so pipelines construct the parser with
// DayFirst=true; this is a policy knob, not a fixed assumption.
type TimestampParser struct {
	DayFirst bool
}

// dateparse rejects dashed day-first dates outright, so the region's
// standard DD-MM-YYYY layouts are tried explicitly before falling back to
// its loose parsing. An ISO string like 2019-06-15 fails all three layouts
// (month 19 does not exist) and falls through.
var dayFirstLayouts = []string{
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
}

// Parse returns the UTC timestamp for a raw string. Empty input and parse
// failures report ok=false. Naive inputs are assumed UTC; zone-aware inputs
// are converted to UTC.
func (p TimestampParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	s = FixTimeSeparator(s)

	if p.DayFirst {
		for _, layout := range dayFirstLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), true
			}
		}
	}

	ts, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(!p.DayFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// ISO renders a parsed timestamp in the canonical storage form.
func ISO(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
