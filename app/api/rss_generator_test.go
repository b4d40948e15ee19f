package api

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/event"
)

func TestRSSGeneratorRun(t *testing.T) {
	generator := NewRSSGenerator("https://agenda.example.com/", "1.2.0")

	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	events := []database.Event{
		{
			ID: "event-1",
			Event: event.Event{
				Title:       "Taller de manualidades",
				StartDate:   "2025-07-15",
				Category:    event.CategoryTraining,
				Price:       event.FreePrice,
				Location:    "Casa de la Cultura",
				Description: "Para todas las edades",
			},
			CreatedAt: created,
		},
		{
			ID: "event-2",
			Event: event.Event{
				Title:     "Fiestas patronales",
				StartDate: "2025-08-28",
				EndDate:   "2025-09-01",
				Category:  event.CategoryLeisure,
				Link:      "https://www.ssreyes.org/fiestas",
			},
			CreatedAt: created,
		},
	}

	rss, err := generator.Run(events, created)
	if err != nil {
		t.Fatalf("Failed to generate RSS: %v", err)
	}

	expected := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`<atom:link href="https://agenda.example.com/api/eventos/rss" rel="self" type="application/rss+xml" />`,
		"<generator>Bulletin-Comb/1.2.0</generator>",
		"<language>es</language>",
		`<guid isPermaLink="false">event-1</guid>`,
		"<title>Taller de manualidades</title>",
		"<link>https://agenda.example.com/api/eventos/event-1</link>",
		"<category>Formación</category>",
		"Lugar: Casa de la Cultura",
		"Precio: Free",
		"Fecha: 2025-08-28 - 2025-09-01",
		"<link>https://www.ssreyes.org/fiestas</link>",
		"<pubDate>" + created.Format(time.RFC1123Z) + "</pubDate>",
	}

	for _, s := range expected {
		if !strings.Contains(rss, s) {
			t.Errorf("RSS should contain %q", s)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got: %d", strings.Count(rss, "<item>"))
	}
}

func TestRSSGeneratorEmpty(t *testing.T) {
	rss, err := NewRSSGenerator("http://localhost:8080", "dev").Run(nil, time.Now())
	if err != nil {
		t.Fatalf("Failed to generate RSS: %v", err)
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if !strings.HasSuffix(rss, "</channel>\n</rss>") {
		t.Error("Expected closed channel")
	}
}
