package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/lysyi3m/bulletin-comb/app/event"
)

var (
	ErrTooLarge          = errors.New("file exceeds the upload size limit")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrOutsideStore      = errors.New("path is outside the uploads directory")
)

var pdfMagic = []byte("%PDF")

// Store keeps uploaded documents under <dir>/<source-slug>/.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) *Store {
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// ValidateUpload checks the extension and, for PDFs, the file header.
func ValidateUpload(filename string, head []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := allowedExtensions[ext]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if kind == KindPDF && !bytes.HasPrefix(head, pdfMagic) {
		return fmt.Errorf("%w: file is not a PDF", ErrUnsupportedFormat)
	}
	return nil
}

// Save writes r to a timestamped file and returns its path. Nothing is left
// on disk when validation or the size check fails.
func (s *Store) Save(sourceName, filename string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", 0, ErrTooLarge
	}

	if err := ValidateUpload(filename, data); err != nil {
		return "", 0, err
	}

	dir := filepath.Join(s.dir, Slug(sourceName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := time.Now().Format("20060102_150405") + "_" + safeFilename(filename)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}

	slog.Info("Document stored", "source", sourceName, "path", path, "size", len(data))
	return path, int64(len(data)), nil
}

func (s *Store) Contains(path string) bool {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Store) Delete(path string) error {
	if !s.Contains(path) {
		return ErrOutsideStore
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	slog.Info("Document deleted", "path", path)
	return nil
}

// Slug turns a source name into a directory name: "San Sebastián de los
// Reyes" becomes "san-sebastian-de-los-reyes".
func Slug(name string) string {
	slug := strings.Join(event.Words(name), "-")
	if slug == "" {
		return "source"
	}
	return slug
}

func safeFilename(filename string) string {
	base := filepath.Base(filename)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "document"
	}
	return name
}
