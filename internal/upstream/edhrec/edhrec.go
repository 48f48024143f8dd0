// Package edhrec reads EDHREC's public JSON pages: commander and card
// recommendation pages and the game changer list.
//
// EDHREC pages are large, loosely versioned documents. Only a handful of
// fields are read, so they are picked out with gjson paths instead of
// mirroring the whole schema in structs; absent fields read as zero values.
package edhrec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

// API is the rate limiter key for EDHREC.
const API = "edhrec"

const (
	// DefaultBaseURL serves the JSON pages.
	DefaultBaseURL = "https://json.edhrec.com"

	// WebURL is the human facing site.
	WebURL = "https://edhrec.com"

	gameChangersPath = "/pages/top/game-changers.json"
)

// Kind selects the page family.
type Kind string

const (
	Commanders Kind = "commanders"
	Cards      Kind = "cards"
)

// CardView is one entry of an EDHREC card list.
type CardView struct {
	Name           string
	Sanitized      string
	SanitizedWO    string
	Label          string
	NumDecks       int
	PotentialDecks int
	Synergy        *float64
}

// CardList is a headed section of a page, e.g. "Top Cards" or "Creatures".
type CardList struct {
	Header    string
	CardViews []CardView
}

// Page is a parsed commander or card page.
type Page struct {
	// NumDecks is the number of decks the page's card appears in.
	NumDecks  int
	CardLists []CardList
}

// Slug converts a card name to EDHREC's URL form: lowercase, spaces to
// hyphens, commas and apostrophes removed.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "'", "")
	return s
}

// PageURL returns the web URL for a page of the given kind.
func PageURL(kind Kind, slug string) string {
	return WebURL + "/" + string(kind) + "/" + slug
}

// Option is a functional option for [New].
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// Client reads EDHREC JSON pages.
type Client struct {
	http    *upstream.Client
	baseURL string
}

// New returns a Client issuing requests through hc.
func New(hc *upstream.Client, opts ...Option) *Client {
	c := &Client{http: hc, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GameChangersURL is the JSON URL of the game changer list.
func (c *Client) GameChangersURL() string { return c.baseURL + gameChangersPath }

// Page fetches the commander or card page for slug.
func (c *Client) Page(ctx context.Context, kind Kind, slug string) (*Page, error) {
	raw, err := c.fetch(ctx, c.baseURL+"/pages/"+string(kind)+"/"+slug+".json")
	if err != nil {
		return nil, fmt.Errorf("edhrec: %s page %s: %w", kind, slug, err)
	}
	return parsePage(raw), nil
}

// GameChangers fetches the game changer list page.
func (c *Client) GameChangers(ctx context.Context) (*Page, error) {
	raw, err := c.fetch(ctx, c.GameChangersURL())
	if err != nil {
		return nil, fmt.Errorf("edhrec: game changers: %w", err)
	}
	return parsePage(raw), nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func parsePage(raw []byte) *Page {
	dict := gjson.GetBytes(raw, "container.json_dict")
	p := &Page{NumDecks: int(dict.Get("card.num_decks").Int())}
	dict.Get("cardlists").ForEach(func(_, list gjson.Result) bool {
		cl := CardList{Header: list.Get("header").String()}
		list.Get("cardviews").ForEach(func(_, v gjson.Result) bool {
			cl.CardViews = append(cl.CardViews, parseCardView(v))
			return true
		})
		p.CardLists = append(p.CardLists, cl)
		return true
	})
	return p
}

func parseCardView(v gjson.Result) CardView {
	cv := CardView{
		Name:           v.Get("name").String(),
		Sanitized:      v.Get("sanitized").String(),
		SanitizedWO:    v.Get("sanitized_wo").String(),
		Label:          v.Get("label").String(),
		NumDecks:       int(v.Get("num_decks").Int()),
		PotentialDecks: int(v.Get("potential_decks").Int()),
	}
	if s := v.Get("synergy"); s.Type == gjson.Number {
		f := s.Float()
		cv.Synergy = &f
	}
	return cv
}
