// Package websource is a sample data source that fetches a URL and
// extracts its readable text, for a "web snapshot" display track. The
// DOM-walk extractor is adapted from the teacher's
// internal/fetch/extract.go (golang.org/x/net/html), which is
// unexported there, so the block-element/skip-element traversal is
// reproduced here against the same library rather than imported.
package websource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/exec"
)

// defaultMaxBytes caps the response body read, matching the teacher's
// fetch.DefaultMaxBytes.
const defaultMaxBytes int64 = 5 * 1024 * 1024

// Snapshot is the opened state: a fetched page's title and extracted
// readable text.
type Snapshot struct {
	URL     string
	Title   string
	Content string
}

type source struct {
	client *http.Client
	url    string
}

// New builds a websource Source that fetches url on every Open call.
// client may be nil, in which case a client with a 30-second timeout
// is used.
func New(id, url string, client *http.Client) (*datasource.Source, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: websource: url is required", coreerr.InvalidInput)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &source{client: client, url: url}
	return &datasource.Source{ID: id, Opener: s.open}, nil
}

// open fetches the page and extracts its readable text as the opened
// state (spec.md §4.6 "open(ctx, params) -> future<state>").
func (s *source) open(ctx *exec.Context, params map[string]any) (any, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: websource: invalid url: %v", coreerr.InvalidInput, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websource: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("websource: read response: %w", err)
	}

	title, content := extractHTML(string(body))
	return Snapshot{URL: s.url, Title: title, Content: content}, nil
}

// skipElements are HTML elements whose content should be excluded.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
}

// extractHTML parses HTML and returns (title, readable text content).
func extractHTML(raw string) (string, string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", cleanWhitespace(raw)
	}

	title := findTitle(doc)
	var content strings.Builder
	extractText(doc, &content)

	return title, cleanWhitespace(content.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func extractText(n *html.Node, w *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] {
			return
		}
		if isBlockElement(n.DataAtom) && w.Len() > 0 {
			w.WriteString("\n\n")
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(text)
			w.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, w)
	}

	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li) {
		w.WriteString("\n")
	}
}

func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table,
		atom.Tr, atom.Dl, atom.Dd, atom.Dt, atom.Figcaption, atom.Figure,
		atom.Details, atom.Summary, atom.Hr:
		return true
	}
	return false
}

func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	prevEmpty := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
