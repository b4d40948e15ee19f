package source

import (
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/bulletin-comb/app/event"
)

// Prompt is a resolved template together with the extraction settings of
// the source it belongs to.
type Prompt struct {
	Key          string
	Template     string
	Defaults     ExtractionConfig
	FieldMapping map[string]string
	Filters      []event.Filter
}

// Render substitutes the placeholder with text, cut to maxChars runes when
// maxChars is positive. Other braces in the template are left alone, so
// templates can show JSON examples.
func (p *Prompt) Render(text string, maxChars int) string {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
	}
	return strings.ReplaceAll(p.Template, Placeholder, text)
}
