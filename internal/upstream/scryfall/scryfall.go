// Package scryfall is a client for the Scryfall card data API.
//
// Only the endpoints mtgctx needs are covered: named card lookup, rulings,
// paginated search and catalogs. Every request goes through the shared
// [upstream.Client] and therefore through the "scryfall" rate limiter key.
package scryfall

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

// API is the rate limiter key for Scryfall.
const API = "scryfall"

// DefaultBaseURL is the public Scryfall API endpoint.
const DefaultBaseURL = "https://api.scryfall.com"

// Mode selects how [Client.Named] matches a card name.
type Mode string

const (
	Fuzzy Mode = "fuzzy"
	Exact Mode = "exact"
)

// Prices holds the market prices Scryfall reports. Missing prices are nil.
type Prices struct {
	USD     *string `json:"usd"`
	USDFoil *string `json:"usd_foil"`
	EUR     *string `json:"eur"`
	Tix     *string `json:"tix"`
}

// Face is one face of a multi-faced card.
type Face struct {
	Name       string `json:"name"`
	TypeLine   string `json:"type_line"`
	ManaCost   string `json:"mana_cost"`
	OracleText string `json:"oracle_text"`
}

// Card is the subset of a Scryfall card object mtgctx reads.
type Card struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TypeLine      string   `json:"type_line"`
	ManaCost      string   `json:"mana_cost"`
	CMC           float64  `json:"cmc"`
	Colors        []string `json:"colors"`
	ColorIdentity []string `json:"color_identity"`
	OracleText    string   `json:"oracle_text"`
	Keywords      []string `json:"keywords"`
	ScryfallURI   string   `json:"scryfall_uri"`
	Prices        Prices   `json:"prices"`
	CardFaces     []Face   `json:"card_faces"`
}

// Oracle returns the card's rules text. Multi-faced cards carry their text
// on the faces, which are joined with a blank line.
func (c *Card) Oracle() string {
	if c.OracleText != "" || len(c.CardFaces) == 0 {
		return c.OracleText
	}
	parts := make([]string, 0, len(c.CardFaces))
	for _, f := range c.CardFaces {
		if f.OracleText != "" {
			parts = append(parts, f.OracleText)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Ruling is an official ruling attached to a card.
type Ruling struct {
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Comment     string `json:"comment"`
	OracleID    string `json:"oracle_id,omitempty"`
}

// list is Scryfall's paginated list envelope.
type list[T any] struct {
	Data       []T    `json:"data"`
	HasMore    bool   `json:"has_more"`
	NextPage   string `json:"next_page"`
	TotalCards int    `json:"total_cards"`
}

// Option is a functional option for [New].
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL]. Intended for tests and mirrors.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// Client talks to Scryfall.
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

// Named resolves name to exactly one card. A name Scryfall cannot resolve
// yields an [upstream.KindNotFound] error.
func (c *Client) Named(ctx context.Context, name string, mode Mode) (*Card, error) {
	u := c.baseURL + "/cards/named?" + url.Values{string(mode): {name}}.Encode()
	var card Card
	if err := c.http.GetJSON(ctx, u, &card); err != nil {
		return nil, fmt.Errorf("scryfall: named %q: %w", name, err)
	}
	return &card, nil
}

// Rulings returns the rulings for the card with the given Scryfall ID.
func (c *Client) Rulings(ctx context.Context, id string) ([]Ruling, error) {
	u := c.baseURL + "/cards/" + url.PathEscape(id) + "/rulings"
	var l list[Ruling]
	if err := c.http.GetJSON(ctx, u, &l); err != nil {
		return nil, fmt.Errorf("scryfall: rulings %s: %w", id, err)
	}
	if l.Data == nil {
		l.Data = []Ruling{}
	}
	return l.Data, nil
}

// SearchAll runs a full-text search and follows next_page links until the
// result set is exhausted. The limiter is consulted before every page,
// including the first. A search without matches returns an empty slice;
// Scryfall signals that case with a 404.
func (c *Client) SearchAll(ctx context.Context, query, order string) ([]Card, error) {
	next := c.searchURL(query, order)
	var cards []Card
	for page := 1; next != ""; page++ {
		var l list[Card]
		if err := c.http.GetJSON(ctx, next, &l); err != nil {
			if page == 1 && upstream.IsNotFound(err) {
				return []Card{}, nil
			}
			return nil, fmt.Errorf("scryfall: search %q page %d: %w", query, page, err)
		}
		cards = append(cards, l.Data...)
		next = ""
		if l.HasMore || l.NextPage != "" {
			next = l.NextPage
		}
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}

// Search returns at most limit cards from the first result page.
func (c *Client) Search(ctx context.Context, query, order string, limit int) ([]Card, error) {
	var l list[Card]
	if err := c.http.GetJSON(ctx, c.searchURL(query, order), &l); err != nil {
		if upstream.IsNotFound(err) {
			return []Card{}, nil
		}
		return nil, fmt.Errorf("scryfall: search %q: %w", query, err)
	}
	if limit > 0 && len(l.Data) > limit {
		l.Data = l.Data[:limit]
	}
	return l.Data, nil
}

// Catalog returns one of Scryfall's named catalogs, e.g. "creature-types".
func (c *Client) Catalog(ctx context.Context, name string) ([]string, error) {
	var l struct {
		Data []string `json:"data"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/catalog/"+url.PathEscape(name), &l); err != nil {
		return nil, fmt.Errorf("scryfall: catalog %s: %w", name, err)
	}
	return l.Data, nil
}

func (c *Client) searchURL(query, order string) string {
	v := url.Values{"q": {query}, "unique": {"cards"}}
	if order != "" {
		v.Set("order", order)
	}
	return c.baseURL + "/cards/search?" + v.Encode()
}
