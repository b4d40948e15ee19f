package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lysyi3m/bulletin-comb/app/errs"
)

const validDefinition = `
name: "San Sebastián de los Reyes"
type: pdf
enabled: true

extraction_config:
  default_location: "Centro Municipal"
  default_price: "Gratis"
  default_city: "San Sebastián de los Reyes"
  default_category: "Ocio y Social"

field_mapping:
  fecha: fecha_inicio

filters:
  - field: "title"
    excludes:
      - "suspendido"

prompt: |
  Extrae los eventos del siguiente boletín y responde con JSON
  {"eventos": [{"titulo": "...", "fecha_inicio": "..."}]}

  {texto}
`

func writeDefinition(t *testing.T, dir, key, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, key+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryLoadValidDefinition(t *testing.T) {
	tempDir := t.TempDir()
	writeDefinition(t, tempDir, "ssreyes", validDefinition)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 definition, got %d", registry.Count())
	}

	def, err := registry.Get("ssreyes")
	if err != nil {
		t.Fatal(err)
	}

	if def.Key != "ssreyes" {
		t.Errorf("Expected key 'ssreyes', got '%s'", def.Key)
	}
	if def.Name != "San Sebastián de los Reyes" {
		t.Errorf("Expected name 'San Sebastián de los Reyes', got '%s'", def.Name)
	}
	if def.Type != TypePDF {
		t.Errorf("Expected type pdf, got %s", def.Type)
	}
	if def.ExtractionConfig.DefaultPrice != "Gratis" {
		t.Errorf("Expected default price 'Gratis', got '%s'", def.ExtractionConfig.DefaultPrice)
	}
	if def.FieldMapping["fecha"] != "fecha_inicio" {
		t.Errorf("Expected field mapping for 'fecha', got %v", def.FieldMapping)
	}
	if len(def.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(def.Filters))
	}
}

func TestRegistryResolve(t *testing.T) {
	tempDir := t.TempDir()
	writeDefinition(t, tempDir, "ssreyes", validDefinition)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	prompt, err := registry.Resolve("ssreyes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt.Template, Placeholder) {
		t.Error("Expected resolved template to contain the placeholder")
	}
	if prompt.Defaults.DefaultCity != "San Sebastián de los Reyes" {
		t.Errorf("Expected default city, got '%s'", prompt.Defaults.DefaultCity)
	}

	_, err = registry.Resolve("unknown")
	if err == nil {
		t.Fatal("Expected error for unknown key")
	}
	if !errs.IsConfiguration(err) {
		t.Errorf("Expected configuration error, got %T: %v", err, err)
	}
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{
			name:    "missing placeholder",
			content: "name: A\nprompt: \"Extrae eventos\"\n",
			message: "placeholder",
		},
		{
			name:    "missing name",
			content: "prompt: \"{texto}\"\n",
			message: "source name is required",
		},
		{
			name:    "invalid type",
			content: "name: A\ntype: image\nprompt: \"{texto}\"\n",
			message: "invalid source type",
		},
		{
			name:    "invalid category",
			content: "name: A\nprompt: \"{texto}\"\nextraction_config:\n  default_category: Astronomía\n",
			message: "invalid default category",
		},
		{
			name:    "invalid filter field",
			content: "name: A\nprompt: \"{texto}\"\nfilters:\n  - field: author\n    excludes: [x]\n",
			message: "invalid filter field",
		},
		{
			name:    "empty filter",
			content: "name: A\nprompt: \"{texto}\"\nfilters:\n  - field: title\n",
			message: "at least one include or exclude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeDefinition(t, tempDir, "broken", tt.content)

			registry := NewRegistry(tempDir)
			err := registry.Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.message, err.Error())
			}
		})
	}
}

func TestRegistryMissingDirectory(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	if err := registry.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 definitions, got %d", registry.Count())
	}
}

func TestRegistryKeysSorted(t *testing.T) {
	tempDir := t.TempDir()
	writeDefinition(t, tempDir, "zeta", validDefinition)
	writeDefinition(t, tempDir, "alfa", validDefinition)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	keys := registry.Keys()
	if len(keys) != 2 || keys[0] != "alfa" || keys[1] != "zeta" {
		t.Errorf("Expected [alfa zeta], got %v", keys)
	}
}

func TestPromptRender(t *testing.T) {
	prompt := &Prompt{Template: `Responde {"eventos": []} para: {texto}`}

	got := prompt.Render("JULIO 2025", 0)
	if got != `Responde {"eventos": []} para: JULIO 2025` {
		t.Errorf("Unexpected render result: %s", got)
	}

	got = prompt.Render("ñandú ñandú", 5)
	if !strings.HasSuffix(got, "para: ñandú") {
		t.Errorf("Expected text truncated to 5 runes, got %s", got)
	}
}
