package normalize

import (
	"testing"
	"time"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"plain", "1234.56", 1234.56, true},
		{"thousands separators", "1,234.56", 1234.56, true},
		{"padded", " 1234 ", 1234, true},
		{"zero", "0", 0, true},
		{"negative", "-50", -50, true},
		{"empty", "", 0, false},
		{"whitespace only", "   ", 0, false},
		{"non-numeric", "abc", 0, false},
		{"comma only", ",", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Amount(tt.input)
			if ok != tt.ok {
				t.Fatalf("Amount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Amount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		input string
		want  Tristate
	}{
		{"yes", True},
		{"YES", True},
		{"true", True},
		{"1", True},
		{"y", True},
		{"no", False},
		{"FALSE", False},
		{"0", False},
		{"n", False},
		{" No ", False},
		{"maybe", Unknown},
		{"", Unknown},
		{"2", Unknown},
	}

	for _, tt := range tests {
		if got := Bool(tt.input); got != tt.want {
			t.Errorf("Bool(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFixTimeSeparator(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"01-02-2024 14.16", "01-02-2024 14:16"},
		{"01-02-2024 9.51", "01-02-2024 9:51"},
		{"01-02-2024 14:16", "01-02-2024 14:16"},
		{"no time here", "no time here"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FixTimeSeparator(tt.input); got != tt.want {
			t.Errorf("FixTimeSeparator(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseTimestampDayFirst(t *testing.T) {
	p := TimestampParser{DayFirst: true}

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"dashed with minutes", "01-02-2024 14:16",
			time.Date(2024, 2, 1, 14, 16, 0, 0, time.UTC)},
		{"dashed with dot separator", "01-02-2024 14.16",
			time.Date(2024, 2, 1, 14, 16, 0, 0, time.UTC)},
		{"dashed unambiguous day", "15-02-2024 14:16",
			time.Date(2024, 2, 15, 14, 16, 0, 0, time.UTC)},
		{"dashed with seconds", "01-02-2024 14:16:30",
			time.Date(2024, 2, 1, 14, 16, 30, 0, time.UTC)},
		{"dashed date only", "01-02-2024",
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"iso date only", "2019-06-15",
			time.Date(2019, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.input)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, ts, tt.want)
			}
			if ts.Location() != time.UTC {
				t.Errorf("Parse(%q) location = %v, want UTC", tt.input, ts.Location())
			}
		})
	}
}

func TestParseTimestampFailures(t *testing.T) {
	p := TimestampParser{DayFirst: true}

	for _, input := range []string{"", "   ", "not a date"} {
		if _, ok := p.Parse(input); ok {
			t.Errorf("Parse(%q) unexpectedly succeeded", input)
		}
	}
}

func TestParseTimestampZoneAware(t *testing.T) {
	p := TimestampParser{DayFirst: true}

	ts, ok := p.Parse("2024-02-01T10:00:00+05:30")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got := ts.UTC().Hour(); got != 4 {
		t.Errorf("expected 04:30 UTC, got hour %d", got)
	}
	if ts.Minute() != 30 {
		t.Errorf("expected minute 30, got %d", ts.Minute())
	}
}
