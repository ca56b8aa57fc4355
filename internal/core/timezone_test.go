package core

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q) error = %v", name, err)
	}
	return loc
}

func TestLocalToUTC_Paris(t *testing.T) {
	paris := mustLocation(t, "Europe/Paris")

	tests := []struct {
		name  string
		naive string
		want  string
	}{
		{"winter", "2025-11-03 10:00:00", "2025-11-03 09:00:00"},
		{"summer", "2025-07-14 08:15:00", "2025-07-14 06:15:00"},
		{"spring-forward gap moves later", "2025-03-30 02:30:00", "2025-03-30 01:30:00"},
		{"just before gap", "2025-03-30 01:59:59", "2025-03-30 00:59:59"},
		{"just after gap", "2025-03-30 03:00:00", "2025-03-30 01:00:00"},
		{"fall-back ambiguity takes earlier", "2025-10-26 02:30:00", "2025-10-26 00:30:00"},
		{"after fall-back", "2025-10-26 03:00:00", "2025-10-26 02:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			naive, err := time.Parse(time.DateTime, tt.naive)
			if err != nil {
				t.Fatal(err)
			}
			got := LocalToUTC(naive, paris).UTC().Format(time.DateTime)
			if got != tt.want {
				t.Errorf("LocalToUTC(%s) = %s, want %s", tt.naive, got, tt.want)
			}
		})
	}
}

func TestLocalToUTC_UTCIsIdentity(t *testing.T) {
	naive := time.Date(2025, 3, 30, 2, 30, 0, 0, time.UTC)
	if got := LocalToUTC(naive, time.UTC); !got.Equal(naive) {
		t.Errorf("LocalToUTC(UTC) = %v, want %v", got, naive)
	}
}
