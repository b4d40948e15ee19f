package event

// DateLayout is the canonical storage and wire format for event dates.
const DateLayout = "2006-01-02"

// Raw is a candidate as returned by the LLM, after field mapping but before
// normalization. All values are strings as the model produced them.
type Raw struct {
	Index       int // Position in the LLM reply
	Title       string
	StartDate   string
	EndDate     string
	Category    string
	Price       string
	Location    string
	Link        string
	Description string
	Extra       map[string]any
}

// Event is a normalized, canonical event.
type Event struct {
	Title       string         `json:"titulo"`
	StartDate   string         `json:"fecha_inicio"`
	EndDate     string         `json:"fecha_fin,omitempty"`
	Category    string         `json:"categoria"`
	Price       string         `json:"precio"`
	Location    string         `json:"ubicacion"`
	Link        string         `json:"enlace"`
	Description string         `json:"descripcion"`
	Extra       map[string]any `json:"datos_extra,omitempty"`
	Fingerprint string         `json:"-"`
}

// Defaults are per-source fallbacks applied during normalization.
type Defaults struct {
	Location string
	Price    string
	City     string
	Category string
	Link     string
}

type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
