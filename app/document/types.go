package document

import (
	"path/filepath"
	"strings"
)

type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindFeed Kind = "feed"
	KindText Kind = "text"
)

// Document points at the input of a run: a stored upload (Path) or a
// remote page or feed (URL). Path wins when both are set.
type Document struct {
	Path string
	URL  string
	Kind Kind
}

// Text is the plain text handed to the prompt. Title is used for period
// detection only and may be empty.
type Text struct {
	Content string
	Title   string
}

var allowedExtensions = map[string]Kind{
	".pdf":  KindPDF,
	".html": KindHTML,
	".htm":  KindHTML,
	".xml":  KindFeed,
	".rss":  KindFeed,
	".atom": KindFeed,
	".txt":  KindText,
	".md":   KindText,
}

func KindFromPath(path string) Kind {
	if kind, ok := allowedExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return KindText
}
