// Package rulestext fetches the Magic: The Gathering Comprehensive Rules text
// document and splits it into numbered sections.
package rulestext

import (
	"context"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

// API is the rate limiter key for the rules publisher.
const API = "wizards"

const (
	// DefaultURL is the published text edition of the Comprehensive Rules.
	DefaultURL = "https://media.wizards.com/2025/downloads/MagicCompRules%2020250919.txt"

	// DefaultLastUpdated is the effective date of [DefaultURL].
	DefaultLastUpdated = "2025-09-19"
)

// Sections maps a section marker line to its text, in document order.
type Sections = orderedmap.OrderedMap[string, string]

// Document is a parsed rules document.
type Document struct {
	LastUpdated string
	Sections    *Sections
}

// Keys returns the section keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Sections.Len())
	for p := d.Sections.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Option is a functional option for [New].
type Option func(*Fetcher)

// WithURL overrides [DefaultURL] together with its effective date.
func WithURL(url, lastUpdated string) Option {
	return func(f *Fetcher) {
		if url != "" {
			f.url = url
		}
		if lastUpdated != "" {
			f.lastUpdated = lastUpdated
		}
	}
}

// Fetcher downloads and parses the rules document.
type Fetcher struct {
	client      *upstream.Client
	url         string
	lastUpdated string
}

// New returns a Fetcher that issues requests through c.
func New(c *upstream.Client, opts ...Option) *Fetcher {
	f := &Fetcher{client: c, url: DefaultURL, lastUpdated: DefaultLastUpdated}
	for _, o := range opts {
		o(f)
	}
	return f
}

// LastUpdated returns the effective date of the configured document.
func (f *Fetcher) LastUpdated() string { return f.lastUpdated }

// Fetch downloads the document with a single GET and parses it. On failure
// no partial document is returned.
func (f *Fetcher) Fetch(ctx context.Context) (*Document, error) {
	text, err := f.client.GetText(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("rulestext: fetch: %w", err)
	}
	return &Document{LastUpdated: f.lastUpdated, Sections: ParseSections(text)}, nil
}

// ParseSections splits text into sections. A section starts at every line
// whose trimmed form begins with one or more digits followed by a period; the
// trimmed line is the key. A section's text is its marker line plus every
// following line up to the next marker. Lines before the first marker are
// dropped. A repeated marker keeps its first position and takes the later
// text.
func ParseSections(text string) *Sections {
	sections := orderedmap.New[string, string]()

	var (
		key   string
		lines []string
	)
	flush := func() {
		if key != "" && len(lines) > 0 {
			sections.Set(key, strings.Join(lines, "\n"))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if isMarker(trimmed) {
			flush()
			key = trimmed
			lines = []string{line}
			continue
		}
		if key != "" {
			lines = append(lines, line)
		}
	}
	flush()
	return sections
}

func isMarker(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && s[i] == '.'
}
