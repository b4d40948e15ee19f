package api

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
)

// RSSGenerator renders upcoming events as an RSS 2.0 channel.
type RSSGenerator struct {
	baseURL string
	version string
}

func NewRSSGenerator(baseURL, version string) *RSSGenerator {
	return &RSSGenerator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: version,
	}
}

func (g *RSSGenerator) Run(events []database.Event, buildDate time.Time) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "Agenda de eventos", 4)
	g.writeElement(&buf, "link", g.baseURL+"/api/eventos", 4)
	g.writeElement(&buf, "description", "Próximos eventos extraídos de los boletines municipales", 4)

	selfLink := g.baseURL + "/api/eventos/rss"
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeElement(&buf, "lastBuildDate", buildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Bulletin-Comb/%s", g.version), 4)
	g.writeElement(&buf, "language", "es", 4)

	for i := range events {
		g.writeItem(&buf, &events[i])
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, ev *database.Event) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(ev.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", ev.Title, 6)
	g.writeElement(buf, "link", cmp.Or(ev.Link, g.baseURL+"/api/eventos/"+ev.ID), 6)
	g.writeElement(buf, "description", g.describe(ev), 6)
	g.writeElement(buf, "category", ev.Category, 6)
	g.writeElement(buf, "pubDate", ev.CreatedAt.Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

func (g *RSSGenerator) describe(ev *database.Event) string {
	lines := []string{"Fecha: " + ev.StartDate}
	if ev.EndDate != "" && ev.EndDate != ev.StartDate {
		lines[0] += " - " + ev.EndDate
	}
	if ev.Location != "" {
		lines = append(lines, "Lugar: "+ev.Location)
	}
	if ev.Price != "" {
		lines = append(lines, "Precio: "+ev.Price)
	}
	if ev.Description != "" {
		lines = append(lines, ev.Description)
	}
	return strings.Join(lines, "\n")
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
