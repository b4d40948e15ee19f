package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/bulletin-comb/app/event"
)

const maxRemoteBytes = 50 << 20

// Extractor turns a Document into plain text.
type Extractor struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	userAgent  string
	timeout    time.Duration
}

func NewExtractor(userAgent string, timeout time.Duration) *Extractor {
	return &Extractor{
		httpClient: &http.Client{},
		feedParser: gofeed.NewParser(),
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (e *Extractor) Run(ctx context.Context, doc Document) (*Text, error) {
	var data []byte
	var err error

	kind := doc.Kind
	switch {
	case doc.Path != "":
		if kind == "" {
			kind = KindFromPath(doc.Path)
		}
		data, err = os.ReadFile(doc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
	case doc.URL != "":
		if kind == "" {
			kind = KindHTML
		}
		data, err = e.fetch(ctx, doc.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("document has neither path nor URL")
	}

	var text *Text
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
	case KindHTML:
		text, err = extractHTML(data, doc.URL)
	case KindFeed:
		text, err = e.extractFeed(data)
	default:
		text = &Text{Content: string(data)}
	}
	if err != nil {
		return nil, err
	}

	text.Content = strings.TrimSpace(text.Content)
	if text.Content == "" {
		return nil, fmt.Errorf("no text extracted from %s document", kind)
	}

	slog.Debug("Document text extracted", "kind", kind, "path", doc.Path, "url", doc.URL, "length", len(text.Content))
	return text, nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func extractPDF(data []byte) (text *Text, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text = nil
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, line := range pageLines(page.Content().Text) {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return &Text{Content: b.String()}, nil
}

// pageLines rebuilds the lines of a page from its positioned glyphs, kept
// in content stream order. A baseline change starts a new line and a gap
// wider than a quarter of the font size becomes a space.
func pageLines(glyphs []pdf.Text) []string {
	var lines []string
	var line strings.Builder
	var prev *pdf.Text

	flush := func() {
		if s := event.CollapseSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for i := range glyphs {
		g := &glyphs[i]
		// TJ arrays end with a newline run, which some encodings decode
		// to the replacement character
		if g.S == "\n" || g.S == string(unicode.ReplacementChar) {
			line.WriteByte(' ')
			continue
		}

		if prev != nil {
			size := math.Max(math.Abs(prev.FontSize), math.Abs(g.FontSize))
			switch {
			case math.Abs(g.Y-prev.Y) > math.Max(size/2, 1):
				flush()
			case g.X-(prev.X+prev.W) > size/4:
				line.WriteByte(' ')
			}
		}

		line.WriteString(g.S)
		prev = g
	}
	flush()

	return lines
}

func extractHTML(data []byte, pageURL string) (*Text, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	var parsed *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			parsed = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	return &Text{Content: article.TextContent, Title: article.Title}, nil
}

// extractFeed flattens feed items into one block of text per item.
func (e *Extractor) extractFeed(data []byte) (*Text, error) {
	feed, err := e.feedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var b strings.Builder
	for _, item := range feed.Items {
		b.WriteString(event.CollapseSpace(item.Title))
		b.WriteString("\n")
		if item.PublishedParsed != nil {
			b.WriteString(item.PublishedParsed.Format(event.DateLayout))
			b.WriteString("\n")
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		if body != "" {
			b.WriteString(event.CollapseSpace(event.StripTags(body)))
			b.WriteString("\n")
		}
		if item.Link != "" {
			b.WriteString(item.Link)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return &Text{Content: b.String(), Title: feed.Title}, nil
}
