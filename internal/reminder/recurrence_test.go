package reminder

import (
	"testing"
	"time"
)

func TestNextOccurrence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		from    time.Time
		want    time.Time
	}{
		{"daily", t0, t0.AddDate(0, 0, 1)},
		{"DAILY", t0, t0.AddDate(0, 0, 1)},
		{"weekly", t0, t0.AddDate(0, 0, 7)},
		{"monthly", t0, time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)},
		{"yearly", t0, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
		{"yearly", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)},
		{"every 3 days", t0, t0.AddDate(0, 0, 3)},
		{"every 2 weeks", t0, t0.AddDate(0, 0, 14)},
		{"every 90 minutes", t0, t0.Add(90 * time.Minute)},
		{"every hour", t0, t0.Add(time.Hour)},
		{"every 6 months", t0, time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)},
		{"every 100 years", t0, time.Date(2125, 3, 10, 9, 0, 0, 0, time.UTC)},
		{"cron:0 9 * * MON", t0, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)},
		{"cron:30 8 1 * *", t0, time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := NextOccurrence(tt.pattern, tt.from)
		if err != nil {
			t.Errorf("%q from %s: unexpected error %v", tt.pattern, tt.from, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%q from %s: expected %s, got %s", tt.pattern, tt.from, tt.want, got)
		}
	}
}

func TestParsePatternRejects(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{
		"",
		"sometimes",
		"every",
		"every 0 days",
		"every -2 days",
		"every 3 fortnights",
		"every three days",
		"cron:not a cron",
		"cron:61 * * * *",
		"every 5124095577 hours",
		"every 9223372036 minutes",
		"every 36601 days",
		"every 1201 months",
		"every 101 years",
	} {
		if _, err := ParsePattern(pattern); err == nil {
			t.Errorf("expected %q to be rejected", pattern)
		}
	}
}

func TestPatternStringKeepsInput(t *testing.T) {
	t.Parallel()

	p, err := ParsePattern(" every 2 weeks ")
	if err != nil {
		t.Fatalf("ParsePattern failed: %v", err)
	}
	if p.String() != "every 2 weeks" {
		t.Errorf("expected trimmed input, got %q", p.String())
	}
}
