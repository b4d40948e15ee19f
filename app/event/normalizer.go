package event

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/lysyi3m/bulletin-comb/app/errs"
)

const (
	maxTitleRunes       = 200
	maxLocationRunes    = 150
	maxDescriptionRunes = 1000

	mapsSearchURL = "https://www.google.com/maps/search/?api=1&query="
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run turns a raw candidate into a canonical event. index identifies the
// candidate in error reports. The returned error is always a *errs.ParseError.
func (n *Normalizer) Run(index int, raw Raw, defaults Defaults, period Period) (*Event, error) {
	title := truncateRunes(CollapseSpace(StripTags(raw.Title)), maxTitleRunes)
	if title == "" {
		return nil, &errs.ParseError{Index: index, Field: "titulo", Reason: "title is empty"}
	}

	start, err := ParseDate(raw.StartDate, period)
	if err != nil {
		return nil, &errs.ParseError{Index: index, Field: "fecha_inicio", Value: raw.StartDate, Reason: err.Error()}
	}

	ev := &Event{
		Title:       title,
		StartDate:   start.Format(DateLayout),
		Description: truncateRunes(CollapseSpace(StripTags(raw.Description)), maxDescriptionRunes),
		Extra:       raw.Extra,
	}

	if strings.TrimSpace(raw.EndDate) != "" {
		end, err := ParseDate(raw.EndDate, period)
		switch {
		case err != nil:
			slog.Debug("Ignoring unparseable end date", "title", title, "value", raw.EndDate, "error", err)
		case end.Before(start):
			slog.Debug("Ignoring end date before start date", "title", title, "start", ev.StartDate, "end", end.Format(DateLayout))
		case !end.Equal(start):
			ev.EndDate = end.Format(DateLayout)
		}
	}

	ev.Price = NormalizePrice(raw.Price, defaults.Price)
	ev.Category = ResolveCategory(raw.Category, ev.Title, ev.Description, defaults.Category)

	ev.Location = truncateRunes(CollapseSpace(raw.Location), maxLocationRunes)
	if ev.Location == "" {
		ev.Location = CollapseSpace(defaults.Location)
	}

	ev.Link = strings.TrimSpace(raw.Link)
	if ev.Link == "" {
		ev.Link = strings.TrimSpace(defaults.Link)
	}
	if ev.Link == "" && ev.Location != "" {
		ev.Link = MapsLink(ev.Location, defaults.City)
	}

	return ev, nil
}

// MapsLink builds a map search URL for a venue.
func MapsLink(location, city string) string {
	query := location
	if city != "" && !strings.Contains(Fold(location), Fold(city)) {
		query = location + ", " + city
	}
	return mapsSearchURL + url.QueryEscape(query)
}
