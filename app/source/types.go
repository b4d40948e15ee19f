package source

import (
	"github.com/lysyi3m/bulletin-comb/app/event"
)

type Type string

const (
	TypePDF  Type = "pdf"
	TypeHTML Type = "html"
	TypeFeed Type = "feed"
)

// Placeholder is replaced by the document text when a prompt is rendered.
const Placeholder = "{texto}"

// Definition is one source file. Key is derived from the filename (without
// the .yml extension).
type Definition struct {
	Key              string
	Name             string            `yaml:"name"`
	Type             Type              `yaml:"type"`
	URL              string            `yaml:"url"`
	Enabled          bool              `yaml:"enabled"`
	ExtractionConfig ExtractionConfig  `yaml:"extraction_config"`
	FieldMapping     map[string]string `yaml:"field_mapping"`
	Filters          []event.Filter    `yaml:"filters"`
	Prompt           string            `yaml:"prompt"`
}

type ExtractionConfig struct {
	DefaultLocation string `yaml:"default_location"`
	DefaultPrice    string `yaml:"default_price"`
	DefaultCity     string `yaml:"default_city"`
	DefaultCategory string `yaml:"default_category"`
	DefaultLink     string `yaml:"default_link"`
}

func (c ExtractionConfig) Defaults() event.Defaults {
	return event.Defaults{
		Location: c.DefaultLocation,
		Price:    c.DefaultPrice,
		City:     c.DefaultCity,
		Category: c.DefaultCategory,
		Link:     c.DefaultLink,
	}
}
