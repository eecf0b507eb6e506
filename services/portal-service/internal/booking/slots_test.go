package booking

import (
	"testing"
	"time"
)

func TestDefaultSlotPlan(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	slots := defaultSlots("doc-1", date)

	if len(slots) != 13 {
		t.Fatalf("want 13 default slots, got %d", len(slots))
	}
	if slots[0].TimeLabel != "09:00 AM" || slots[0].SlotID != "doc-1_2026-03-10_0" {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}
	if slots[12].TimeLabel != "05:00 PM" || slots[12].SlotIndex != 12 {
		t.Fatalf("unexpected last slot: %+v", slots[12])
	}
	seen := map[string]bool{}
	for _, s := range slots {
		if seen[s.SlotID] {
			t.Fatalf("duplicate slot id %s", s.SlotID)
		}
		seen[s.SlotID] = true
	}
}

func TestStartTime(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	got := startTime(date, "02:30 PM")
	want := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %v, got %v", want, got)
	}

	got = startTime(date, "09:00 AM")
	want = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %v, got %v", want, got)
	}

	// Unparseable labels fall back to midnight rather than failing the
	// transition outright.
	got = startTime(date, "whenever")
	if !got.Equal(date) {
		t.Fatalf("want midnight fallback, got %v", got)
	}
}

func TestCancelBlocked(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if !cancelBlocked(start, start.Add(-30*time.Minute)) {
		t.Fatal("30 minutes before start should block")
	}
	if cancelBlocked(start, start.Add(-2*time.Hour)) {
		t.Fatal("2 hours before start should not block")
	}
	if cancelBlocked(start, start) {
		t.Fatal("at start time should not block")
	}
	if cancelBlocked(start, start.Add(time.Hour)) {
		t.Fatal("past appointments should not block")
	}
}
