package store

import (
	"testing"
	"time"
)

func TestFormatTime_FixedWidth(t *testing.T) {
	instants := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC),
		time.Date(2024, 6, 15, 23, 59, 59, 999999999, time.UTC),
	}
	width := len(formatTime(instants[0]))
	for _, ts := range instants {
		if got := len(formatTime(ts)); got != width {
			t.Errorf("formatTime(%v) width = %d, want %d", ts, got, width)
		}
	}
}

func TestFormatTime_LexicographicMatchesChronological(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	later := time.Date(2024, 1, 1, 0, 0, 1, 1, time.UTC)
	if !(formatTime(earlier) < formatTime(later)) {
		t.Errorf("string order broken: %q >= %q", formatTime(earlier), formatTime(later))
	}
}

func TestFormatTime_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, loc)
	got, err := parseTime(formatTime(ts))
	if err != nil {
		t.Fatalf("parseTime() error = %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("round trip = %v, want instant %v", got, ts)
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}
