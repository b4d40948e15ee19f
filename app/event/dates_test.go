package event

import (
	"testing"
	"time"
)

func TestParseDateFormats(t *testing.T) {
	july2025 := Period{Months: []MonthYear{{Year: 2025, Month: time.July}}}

	tests := []struct {
		input    string
		period   Period
		expected string
	}{
		{"2025-07-15", Period{}, "2025-07-15"},
		{"2025-07-15T18:30:00", Period{}, "2025-07-15"},
		{"15/07/2025", Period{}, "2025-07-15"},
		{"5/7/2025", Period{}, "2025-07-05"},
		{"15-07-2025", Period{}, "2025-07-15"},
		{"15.07.2025", Period{}, "2025-07-15"},
		{"15/07/25", Period{}, "2025-07-15"},
		{"15 de julio de 2025", Period{}, "2025-07-15"},
		{"15 de Julio del 2025", Period{}, "2025-07-15"},
		{"July 15, 2025", Period{}, "2025-07-15"},
		{"15th July 2025", Period{}, "2025-07-15"},
		{"1º de agosto de 2025", Period{}, "2025-08-01"},
		{"15 de julio", july2025, "2025-07-15"},
		{"martes 15 de julio", july2025, "2025-07-15"},
		{"15 MARTES", july2025, "2025-07-15"},
		{"Martes 15", july2025, "2025-07-15"},
		{"15", july2025, "2025-07-15"},
		{"  sábado   19 ", july2025, "2025-07-19"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input, tt.period)
			if err != nil {
				t.Fatalf("Expected %s, got error: %v", tt.expected, err)
			}
			if got.Format(DateLayout) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got.Format(DateLayout))
			}
		})
	}
}

func TestParseDateRejectsUnknownPatterns(t *testing.T) {
	july2025 := Period{Months: []MonthYear{{Year: 2025, Month: time.July}}}

	tests := []struct {
		input  string
		period Period
	}{
		{"", Period{}},
		{"próximamente", july2025},
		{"todos los martes", july2025},
		{"31/02/2025", Period{}},
		{"15 MARTES", Period{}},
		{"16 MARTES", july2025},
		{"15 de julio", Period{}},
		{"miércoles 15 de julio", july2025},
		{"15", Period{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got, err := ParseDate(tt.input, tt.period); err == nil {
				t.Errorf("Expected error for %q, got %s", tt.input, got.Format(DateLayout))
			}
		})
	}
}

func TestParseDateWeekdayPicksMatchingMonth(t *testing.T) {
	period := DetectPeriod("PROGRAMACIÓN JULIO Y AGOSTO 2025")

	// 15 July 2025 is a Tuesday, 15 August 2025 a Friday.
	got, err := ParseDate("15 viernes", period)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(DateLayout) != "2025-08-15" {
		t.Errorf("Expected 2025-08-15, got %s", got.Format(DateLayout))
	}

	got, err = ParseDate("15 martes", period)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(DateLayout) != "2025-07-15" {
		t.Errorf("Expected 2025-07-15, got %s", got.Format(DateLayout))
	}
}

func TestDetectPeriod(t *testing.T) {
	tests := []struct {
		text     string
		expected []MonthYear
	}{
		{"AGENDA JULIO 2025\n15 MARTES Taller", []MonthYear{{2025, time.July}}},
		{"Julio y Agosto de 2025", []MonthYear{{2025, time.July}, {2025, time.August}}},
		{"Programa de septiembre 2025. Avance: octubre 2025", []MonthYear{{2025, time.September}, {2025, time.October}}},
		{"June and July 2026", []MonthYear{{2026, time.June}, {2026, time.July}}},
		{"julio 15 actividades en la plaza 2025", nil},
		{"sin fechas", nil},
	}

	for _, tt := range tests {
		period := DetectPeriod(tt.text)
		if len(period.Months) != len(tt.expected) {
			t.Errorf("%q: expected %d months, got %d (%v)", tt.text, len(tt.expected), len(period.Months), period.Months)
			continue
		}
		for i, my := range tt.expected {
			if period.Months[i] != my {
				t.Errorf("%q: expected month %d to be %v, got %v", tt.text, i, my, period.Months[i])
			}
		}
	}
}

func TestDetectPeriodDeduplicates(t *testing.T) {
	period := DetectPeriod("JULIO 2025 ... julio 2025 ... JULIO 2025")
	if len(period.Months) != 1 {
		t.Errorf("Expected 1 month, got %d", len(period.Months))
	}
}
