package taxyear

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestForDate_UK(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		wantStart int
		wantLabel string
	}{
		{"start of year", date(2024, time.April, 6), 2024, "2024/25"},
		{"day before start", date(2024, time.April, 5), 2023, "2023/24"},
		{"mid year", date(2024, time.December, 31), 2024, "2024/25"},
		{"january of following year", date(2025, time.January, 15), 2024, "2024/25"},
		{"last day", date(2025, time.April, 5), 2024, "2024/25"},
		{"century rollover label", date(2099, time.June, 1), 2099, "2099/00"},
	}

	for _, tt := range tests {
		ty, err := ForDate(UK, tt.date)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if ty.StartYear() != tt.wantStart {
			t.Errorf("%s: StartYear = %d, want %d", tt.name, ty.StartYear(), tt.wantStart)
		}
		if ty.Label() != tt.wantLabel {
			t.Errorf("%s: Label = %s, want %s", tt.name, ty.Label(), tt.wantLabel)
		}
	}
}

func TestForDate_SA(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		wantLabel string
	}{
		{"start of year", date(2024, time.March, 1), "2025"},
		{"day before start", date(2024, time.February, 29), "2024"},
		{"end of february", date(2025, time.February, 28), "2025"},
		{"mid year", date(2024, time.September, 10), "2025"},
	}

	for _, tt := range tests {
		ty, err := ForDate(SA, tt.date)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if ty.Label() != tt.wantLabel {
			t.Errorf("%s: Label = %s, want %s", tt.name, ty.Label(), tt.wantLabel)
		}
	}
}

func TestForDate_UnknownJurisdiction(t *testing.T) {
	if _, err := ForDate(Jurisdiction("US"), date(2024, time.June, 1)); err == nil {
		t.Error("expected error for unknown jurisdiction, got nil")
	}
}

func TestHalfOpenRange(t *testing.T) {
	ty, _ := ForDate(UK, date(2024, time.June, 1))

	if !ty.Contains(ty.Start()) {
		t.Error("Start should be inside the year")
	}
	if ty.Contains(ty.End()) {
		t.Error("End should be outside the year (half-open)")
	}
	if got := ty.End(); !got.Equal(date(2025, time.April, 6)) {
		t.Errorf("End = %v, want 2025-04-06", got)
	}

	sa, _ := ForDate(SA, date(2024, time.June, 1))
	if got := sa.End(); !got.Equal(date(2025, time.March, 1)) {
		t.Errorf("SA End = %v, want 2025-03-01", got)
	}
}

func TestPrevNext(t *testing.T) {
	ty, _ := ForDate(UK, date(2024, time.June, 1))

	if ty.Prev().Label() != "2023/24" {
		t.Errorf("Prev = %s, want 2023/24", ty.Prev().Label())
	}
	if ty.Next().Label() != "2025/26" {
		t.Errorf("Next = %s, want 2025/26", ty.Next().Label())
	}
	if !ty.Prev().Next().Contains(ty.Start()) {
		t.Error("Prev().Next() should round trip")
	}
}

func TestFromLabel(t *testing.T) {
	uk, err := FromLabel(UK, "2024/25")
	if err != nil {
		t.Fatalf("FromLabel UK: %v", err)
	}
	if uk.StartYear() != 2024 {
		t.Errorf("FromLabel UK StartYear = %d, want 2024", uk.StartYear())
	}

	sa, err := FromLabel(SA, "2025")
	if err != nil {
		t.Fatalf("FromLabel SA: %v", err)
	}
	if sa.StartYear() != 2024 {
		t.Errorf("FromLabel SA StartYear = %d, want 2024", sa.StartYear())
	}

	for _, bad := range []string{"2024", "2024/26", "24/25", "abcd/ef"} {
		if _, err := FromLabel(UK, bad); err == nil {
			t.Errorf("FromLabel(UK, %q) expected error, got nil", bad)
		}
	}
	if _, err := FromLabel(SA, "25"); err == nil {
		t.Error("FromLabel(SA, \"25\") expected error, got nil")
	}
}
