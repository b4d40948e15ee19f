package event

import "testing"

func TestCanonicalCategory(t *testing.T) {
	tests := []struct {
		label    string
		expected string
		ok       bool
	}{
		{"Formación", CategoryTraining, true},
		{"formacion", CategoryTraining, true},
		{"DEPORTE Y SALUD", CategorySport, true},
		{"Sport&Health", CategorySport, true},
		{"Walks/Excursions", CategoryWalks, true},
		{"cinema", CategoryCinema, true},
		{"Leisure/Social", CategoryLeisure, true},
		{"astronomía", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := CanonicalCategory(tt.label)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("%q: expected (%q, %v), got (%q, %v)", tt.label, tt.expected, tt.ok, got, ok)
		}
	}
}

func TestClassifyText(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"Taller de manualidades", CategoryTraining},
		{"Ruta senderista por la Dehesa", CategoryWalks},
		{"Proyección: película de animación", CategoryCinema},
		{"Torneo de pádel", CategorySport},
		{"Concierto de la Banda Municipal", CategoryCulture},
		{"Fiestas patronales", CategoryLeisure},
		{"Classic rock night", ""},
		{"Operación kilo", ""},
	}

	for _, tt := range tests {
		got, ok := ClassifyText(tt.text)
		if tt.expected == "" {
			if ok {
				t.Errorf("%q: expected no match, got %s", tt.text, got)
			}
			continue
		}
		if got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.text, tt.expected, got)
		}
	}
}

func TestResolveCategoryNeverEmpty(t *testing.T) {
	inputs := []struct {
		label, title, description, fallback string
	}{
		{"", "", "", ""},
		{"inventada", "Algo raro", "", "no existe"},
		{"", "Reunión", "", ""},
	}

	for _, in := range inputs {
		got := ResolveCategory(in.label, in.title, in.description, in.fallback)
		if got == "" || !IsValidCategory(got) {
			t.Errorf("Expected a valid category for %+v, got %q", in, got)
		}
	}

	if got := ResolveCategory("", "Algo raro", "", "Cultura"); got != CategoryCulture {
		t.Errorf("Expected source fallback %s, got %s", CategoryCulture, got)
	}
	if got := ResolveCategory("", "Algo raro", "", ""); got != DefaultCategory {
		t.Errorf("Expected default %s, got %s", DefaultCategory, got)
	}
	if got := ResolveCategory("Cine", "Taller de pintura", "", ""); got != CategoryCinema {
		t.Errorf("Expected LLM category to be kept, got %s", got)
	}
}

func TestPriceNormalization(t *testing.T) {
	tests := []struct {
		price, fallback, expected string
	}{
		{"", "", FreePrice},
		{"Gratis", "", FreePrice},
		{"Entrada libre hasta completar aforo", "", FreePrice},
		{"GRATUITO", "", FreePrice},
		{"0€", "", FreePrice},
		{"0,00 €", "", FreePrice},
		{"free", "", FreePrice},
		{"5 €", "", "5 €"},
		{"  10€ / 8€ reducida ", "", "10€ / 8€ reducida"},
		{"", "3 €", "3 €"},
		{"", "Gratis", FreePrice},
		{"10 euros", "Gratis", "10 euros"},
	}

	for _, tt := range tests {
		if got := NormalizePrice(tt.price, tt.fallback); got != tt.expected {
			t.Errorf("NormalizePrice(%q, %q): expected %q, got %q", tt.price, tt.fallback, tt.expected, got)
		}
	}
}
