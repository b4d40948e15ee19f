package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/event"
)

var validate = validator.New()

// candidate is the strict schema every LLM event must satisfy.
type candidate struct {
	Title       string `validate:"required,max=500"`
	StartDate   string `validate:"required,max=100"`
	EndDate     string `validate:"max=100"`
	Category    string `validate:"max=100"`
	Price       string `validate:"max=200"`
	Location    string `validate:"max=500"`
	Link        string `validate:"omitempty,max=2000"`
	Description string
}

// fieldNames maps struct fields to the canonical wire names used in reports.
var fieldNames = map[string]string{
	"Title":       "titulo",
	"StartDate":   "fecha_inicio",
	"EndDate":     "fecha_fin",
	"Category":    "categoria",
	"Price":       "precio",
	"Location":    "ubicacion",
	"Link":        "enlace",
	"Description": "descripcion",
}

// aliases maps accepted keys onto canonical field names. Per-source field
// mappings are applied first.
var aliases = map[string]string{
	"titulo":       "titulo",
	"title":        "titulo",
	"nombre":       "titulo",
	"fecha_inicio": "fecha_inicio",
	"fecha":        "fecha_inicio",
	"date":         "fecha_inicio",
	"start_date":   "fecha_inicio",
	"fecha_fin":    "fecha_fin",
	"end_date":     "fecha_fin",
	"categoria":    "categoria",
	"category":     "categoria",
	"precio":       "precio",
	"price":        "precio",
	"ubicacion":    "ubicacion",
	"lugar":        "ubicacion",
	"location":     "ubicacion",
	"enlace":       "enlace",
	"link":         "enlace",
	"url":          "enlace",
	"descripcion":  "descripcion",
	"description":  "descripcion",
}

// Parse reads a model reply. Each element of the "eventos" array is checked
// on its own: bad elements are reported as ParseErrors and skipped. The
// returned error is non-nil only when the reply as a whole is unusable.
func Parse(reply string, mapping map[string]string) ([]event.Raw, []*errs.ParseError, error) {
	items, tail, err := decodeEnvelope(reply)
	if err != nil {
		return nil, nil, err
	}

	var candidates []event.Raw
	var problems []*errs.ParseError

	for i, item := range items {
		raw, perr := decodeCandidate(i, item, mapping)
		if perr != nil {
			problems = append(problems, perr)
			continue
		}
		candidates = append(candidates, raw)
	}

	if tail != nil {
		problems = append(problems, tail)
	}

	return candidates, problems, nil
}

// decodeEnvelope returns the elements of the events array. A reply cut off
// part way through the array keeps its complete elements and reports the
// broken tail as a ParseError.
func decodeEnvelope(reply string) ([]json.RawMessage, *errs.ParseError, error) {
	body := stripFences(reply)

	if strings.HasPrefix(body, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(body), &items); err == nil {
			return items, nil, nil
		}
		if items, tail, ok := salvageArray(body); ok {
			return items, tail, nil
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start || json.Unmarshal([]byte(body[start:end+1]), &envelope) != nil {
			if items, tail, ok := salvageArray(body); ok {
				return items, tail, nil
			}
			return nil, nil, &errs.ParseError{Index: -1, Reason: fmt.Sprintf("reply is not JSON: %v", err)}
		}
	}

	list, ok := envelope["eventos"]
	if !ok {
		list, ok = envelope["events"]
	}
	if !ok {
		return nil, nil, &errs.ParseError{Index: -1, Reason: "reply has no \"eventos\" array"}
	}

	var items []json.RawMessage
	if string(list) == "null" {
		return items, nil, nil
	}
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, nil, &errs.ParseError{Index: -1, Field: "eventos", Reason: fmt.Sprintf("not an array: %v", err)}
	}

	return items, nil, nil
}

// salvageArray walks the events array of a reply that is not valid JSON as
// a whole. ok is false when no events array could be located.
func salvageArray(body string) (items []json.RawMessage, tail *errs.ParseError, ok bool) {
	start := arrayStart(body)
	if start < 0 {
		return nil, nil, false
	}

	dec := json.NewDecoder(strings.NewReader(body[start:]))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return nil, nil, false
	}

	for dec.More() {
		var item json.RawMessage
		if err := dec.Decode(&item); err != nil {
			return items, &errs.ParseError{Index: len(items), Reason: fmt.Sprintf("reply truncated: %v", err)}, true
		}
		items = append(items, item)
	}

	if _, err := dec.Token(); err != nil {
		return items, &errs.ParseError{Index: len(items), Reason: fmt.Sprintf("reply truncated: %v", err)}, true
	}

	return items, nil, true
}

// arrayStart returns the offset of the '[' opening the events array, or -1.
func arrayStart(body string) int {
	if strings.HasPrefix(body, "[") {
		return 0
	}

	for _, key := range []string{`"eventos"`, `"events"`} {
		at := strings.Index(body, key)
		if at < 0 {
			continue
		}
		rest := strings.TrimLeft(body[at+len(key):], " \t\r\n")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		rest = strings.TrimLeft(rest[1:], " \t\r\n")
		if strings.HasPrefix(rest, "[") {
			return len(body) - len(rest)
		}
	}

	return -1
}

func decodeCandidate(index int, item json.RawMessage, mapping map[string]string) (event.Raw, *errs.ParseError) {
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return event.Raw{}, &errs.ParseError{Index: index, Reason: fmt.Sprintf("event is not an object: %v", err)}
	}

	values := make(map[string]string)
	extra := make(map[string]any)

	for key, value := range fields {
		name := strings.ToLower(strings.TrimSpace(key))
		if mapped, ok := mapping[name]; ok {
			name = mapped
		}
		canonical, ok := aliases[name]
		if !ok {
			extra[key] = value
			continue
		}
		// the canonical key beats its aliases; otherwise first non-empty wins
		if v := stringify(value); v != "" && (name == canonical || values[canonical] == "") {
			values[canonical] = v
		}
	}

	c := candidate{
		Title:       strings.TrimSpace(values["titulo"]),
		StartDate:   strings.TrimSpace(values["fecha_inicio"]),
		EndDate:     strings.TrimSpace(values["fecha_fin"]),
		Category:    strings.TrimSpace(values["categoria"]),
		Price:       strings.TrimSpace(values["precio"]),
		Location:    strings.TrimSpace(values["ubicacion"]),
		Link:        strings.TrimSpace(values["enlace"]),
		Description: strings.TrimSpace(values["descripcion"]),
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return event.Raw{}, &errs.ParseError{Index: index, Field: fieldNames[fe.Field()], Reason: "failed " + fe.Tag() + " check"}
		}
		return event.Raw{}, &errs.ParseError{Index: index, Reason: err.Error()}
	}

	if len(extra) == 0 {
		extra = nil
	}

	return event.Raw{
		Index:       index,
		Title:       c.Title,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Category:    c.Category,
		Price:       c.Price,
		Location:    c.Location,
		Link:        c.Link,
		Description: c.Description,
		Extra:       extra,
	}, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// stripFences removes a surrounding Markdown code fence.
func stripFences(reply string) string {
	body := strings.TrimSpace(reply)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
