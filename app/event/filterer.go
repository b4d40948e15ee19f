package event

import (
	"fmt"
	"strings"
)

// FilterFields are the event fields a source filter may inspect.
var FilterFields = map[string]bool{
	"title":       true,
	"description": true,
	"location":    true,
	"category":    true,
	"price":       true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run reports whether ev is excluded by filters, and why.
func (f *Filterer) Run(ev *Event, filters []Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(ev, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(Fold(value), Fold(pattern))
}

func (f *Filterer) getFieldValue(ev *Event, field string) string {
	switch field {
	case "title":
		return ev.Title
	case "description":
		return ev.Description
	case "location":
		return ev.Location
	case "category":
		return ev.Category
	case "price":
		return ev.Price
	default:
		return ""
	}
}
