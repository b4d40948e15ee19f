package event

import "testing"

func TestFingerprintStableUnderWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("Taller de manualidades", "2025-07-15", "src-1")
	b := Fingerprint("  TALLER   de\tManualidades ", "2025-07-15", "src-1")

	if a != b {
		t.Errorf("Expected equal fingerprints, got %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
}

func TestFingerprintDistinguishesDateAndSource(t *testing.T) {
	base := Fingerprint("Taller", "2025-07-15", "src-1")

	if base == Fingerprint("Taller", "2025-07-16", "src-1") {
		t.Error("Expected different fingerprint for different date")
	}
	if base == Fingerprint("Taller", "2025-07-15", "src-2") {
		t.Error("Expected different fingerprint for different source")
	}
}

func TestClassify(t *testing.T) {
	stored := &Event{
		Title:       "Taller",
		StartDate:   "2025-07-15",
		Category:    CategoryTraining,
		Price:       FreePrice,
		Location:    "Biblioteca",
		Description: "Para todas las edades",
	}

	if got := Classify(stored, nil); got != ClassNew {
		t.Errorf("Expected %s, got %s", ClassNew, got)
	}

	same := *stored
	if got := Classify(&same, stored); got != ClassDuplicate {
		t.Errorf("Expected %s, got %s", ClassDuplicate, got)
	}

	edited := *stored
	edited.Description = "Para mayores de 12 años"
	if got := Classify(&edited, stored); got != ClassUpdate {
		t.Errorf("Expected %s, got %s", ClassUpdate, got)
	}

	moved := *stored
	moved.EndDate = "2025-07-20"
	if got := Classify(&moved, stored); got != ClassUpdate {
		t.Errorf("Expected %s for changed end date, got %s", ClassUpdate, got)
	}
}

func TestMergeKeepsIdentity(t *testing.T) {
	stored := &Event{Title: "Taller", StartDate: "2025-07-15", Fingerprint: "fp", Description: "old"}
	candidate := &Event{Title: "TALLER", StartDate: "2025-07-15", Fingerprint: "fp", Description: "new", Price: "2 €"}

	Merge(stored, candidate)

	if stored.Title != "Taller" {
		t.Errorf("Expected stored title to be kept, got %s", stored.Title)
	}
	if stored.Description != "new" || stored.Price != "2 €" {
		t.Errorf("Expected mutable fields to be copied, got %+v", stored)
	}
}

func TestSeen(t *testing.T) {
	seen := Seen{}

	if !seen.Add("a") {
		t.Error("Expected first Add to succeed")
	}
	if seen.Add("a") {
		t.Error("Expected second Add of same fingerprint to fail")
	}
	if !seen.Add("b") {
		t.Error("Expected Add of new fingerprint to succeed")
	}
}
