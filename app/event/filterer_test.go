package event

import (
	"strings"
	"testing"
)

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	filtered, reason := filterer.Run(&Event{Title: "Concierto"}, nil)
	if filtered {
		t.Errorf("Event should not be filtered when no filters are configured, reason: %s", reason)
	}
}

func TestFilterer_Excludes(t *testing.T) {
	filterer := NewFilterer()
	filters := []Filter{{Field: "title", Excludes: []string{"infantil"}}}

	filtered, reason := filterer.Run(&Event{Title: "Cuentacuentos INFANTIL"}, filters)
	if !filtered {
		t.Fatal("Expected event to be filtered")
	}
	if !strings.Contains(reason, "infantil") {
		t.Errorf("Expected reason to mention the keyword, got '%s'", reason)
	}

	if filtered, _ := filterer.Run(&Event{Title: "Concierto"}, filters); filtered {
		t.Error("Expected non-matching event to pass")
	}
}

func TestFilterer_IncludesIgnoreAccents(t *testing.T) {
	filterer := NewFilterer()
	filters := []Filter{{Field: "location", Includes: []string{"biblioteca", "auditorio"}}}

	if filtered, _ := filterer.Run(&Event{Location: "Auditorio Municipal"}, filters); filtered {
		t.Error("Expected included location to pass")
	}
	if filtered, _ := filterer.Run(&Event{Location: "Bibliotéca Central"}, filters); filtered {
		t.Error("Expected accent-insensitive match to pass")
	}
	if filtered, _ := filterer.Run(&Event{Location: "Polideportivo"}, filters); !filtered {
		t.Error("Expected location outside includes to be filtered")
	}
}
