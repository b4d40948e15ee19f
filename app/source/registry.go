package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/event"
)

// Registry holds the source definitions loaded from a directory of YAML
// files. It is built once at startup and passed to whoever needs it.
type Registry struct {
	sourcesDir string
	cache      map[string]*Definition
	mu         sync.RWMutex
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Definition),
	}
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		key := strings.TrimSuffix(fileName, ".yml")

		def, err := r.LoadDefinition(key)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source definition loaded", "source", key, "type", def.Type, "enabled", def.Enabled)
	}

	return nil
}

func (r *Registry) LoadDefinition(key string) (*Definition, error) {
	file := r.getDefinitionFilePath(key)
	def, err := r.parseDefinition(file)
	if err != nil {
		return nil, err
	}

	def.Key = key

	if err := r.validateDefinition(def); err != nil {
		return nil, fmt.Errorf("invalid source definition %s: %w", file, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[def.Key] = def

	return def, nil
}

func (r *Registry) Get(key string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.cache[key]
	if !ok {
		return nil, errs.Configuration("no prompt template for source '%s'", key)
	}
	return def, nil
}

// Resolve returns the prompt for key. An unknown key is a configuration error.
func (r *Registry) Resolve(key string) (*Prompt, error) {
	def, err := r.Get(key)
	if err != nil {
		return nil, err
	}

	return &Prompt{
		Key:          def.Key,
		Template:     def.Prompt,
		Defaults:     def.ExtractionConfig,
		FieldMapping: def.FieldMapping,
		Filters:      def.Filters,
	}, nil
}

func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.cache))
	for _, def := range r.cache {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

func (r *Registry) Keys() []string {
	defs := r.Definitions()
	keys := make([]string, len(defs))
	for i, def := range defs {
		keys[i] = def.Key
	}
	return keys
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Registry) parseDefinition(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if def.Type == "" {
		def.Type = TypePDF
	}

	return &def, nil
}

func (r *Registry) validateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("definition is nil")
	}

	requiredFields := map[string]string{
		"source name": def.Name,
		"prompt":      def.Prompt,
	}

	for fieldName, fieldValue := range requiredFields {
		if strings.TrimSpace(fieldValue) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if !strings.Contains(def.Prompt, Placeholder) {
		return fmt.Errorf("prompt must contain the %s placeholder", Placeholder)
	}

	switch def.Type {
	case TypePDF, TypeHTML, TypeFeed:
	default:
		return fmt.Errorf("invalid source type: %s", def.Type)
	}

	if c := def.ExtractionConfig.DefaultCategory; c != "" {
		if _, ok := event.CanonicalCategory(c); !ok {
			return fmt.Errorf("invalid default category: %s", c)
		}
	}

	for i, filter := range def.Filters {
		if !event.FilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (r *Registry) getDefinitionFilePath(key string) string {
	return filepath.Join(r.sourcesDir, key+".yml")
}
