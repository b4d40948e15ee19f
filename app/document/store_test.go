package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreSave(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)

	path, size, err := store.Save("San Sebastián de los Reyes", "Boletín Julio.pdf", strings.NewReader("%PDF-1.4 content"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if size != 16 {
		t.Errorf("Expected size 16, got: %d", size)
	}

	if filepath.Base(filepath.Dir(path)) != "san-sebastian-de-los-reyes" {
		t.Errorf("Expected slug directory, got: %s", path)
	}
	if !strings.HasSuffix(path, "_Bolet_n_Julio.pdf") {
		t.Errorf("Expected sanitized filename, got: %s", path)
	}
	if !store.Contains(path) {
		t.Errorf("Expected store to contain %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected file on disk, got: %v", err)
	}
	if string(data) != "%PDF-1.4 content" {
		t.Errorf("Expected stored content, got: %s", data)
	}
}

func TestStoreRejects(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 10)

	tests := []struct {
		name     string
		filename string
		content  string
		expected error
	}{
		{"too large", "a.pdf", "%PDF-1.4 way too long", ErrTooLarge},
		{"fake pdf", "a.pdf", "hello", ErrUnsupportedFormat},
		{"bad extension", "a.exe", "MZ", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := store.Save("source", tt.filename, strings.NewReader(tt.content))
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got: %v", tt.expected, err)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected nothing written, got %d entries", len(entries))
	}
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "uploads"), 1024)

	path, _, err := store.Save("source", "notes.txt", strings.NewReader("Concierto 5 de julio"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected file to be removed")
	}

	outside := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(outside); !errors.Is(err, ErrOutsideStore) {
		t.Errorf("Expected ErrOutsideStore, got: %v", err)
	}
	if err := store.Delete(filepath.Join(dir, "uploads", "..", "secret.txt")); !errors.Is(err, ErrOutsideStore) {
		t.Errorf("Expected ErrOutsideStore for traversal, got: %v", err)
	}
}

func TestKindFromPath(t *testing.T) {
	tests := map[string]Kind{
		"a.PDF":     KindPDF,
		"a.html":    KindHTML,
		"feed.xml":  KindFeed,
		"notes.md":  KindText,
		"no-ext":    KindText,
		"page.htm":  KindHTML,
		"list.atom": KindFeed,
	}

	for path, expected := range tests {
		if got := KindFromPath(path); got != expected {
			t.Errorf("Expected %s for %s, got: %s", expected, path, got)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Ayuntamiento de Alcobendas"); got != "ayuntamiento-de-alcobendas" {
		t.Errorf("Expected 'ayuntamiento-de-alcobendas', got: %s", got)
	}
	if got := Slug("???"); got != "source" {
		t.Errorf("Expected fallback slug, got: %s", got)
	}
}
