// Package archidekt imports decks from archidekt.com.
package archidekt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
)

// API is the rate limiter key for Archidekt.
const API = "archidekt"

// DefaultBaseURL is the public Archidekt site, which also serves the API.
const DefaultBaseURL = "https://archidekt.com"

// Source is the source label on imported decks.
const Source = "Archidekt"

// Accepted deck URL shape.
const (
	ExpectedFormat = "https://archidekt.com/decks/{deck_id}/{deck_name}"
	ExampleURL     = "https://archidekt.com/decks/17187915/automation_testing"
)

var deckURL = regexp.MustCompile(`^https?://(?:www\.)?archidekt\.com/decks/(\d+)`)

// DeckID extracts the numeric deck id from an Archidekt deck URL.
func DeckID(rawURL string) (string, bool) {
	m := deckURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

type apiDeck struct {
	ID          deck.Text `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DeckFormat  deck.Text `json:"deckFormat"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
	ViewCount   int       `json:"viewCount"`
	Owner       struct {
		Username string `json:"username"`
	} `json:"owner"`
	Categories []struct {
		ID             deck.Text `json:"id"`
		Name           string    `json:"name"`
		IsPremier      bool      `json:"isPremier"`
		IncludedInDeck *bool     `json:"includedInDeck"`
	} `json:"categories"`
	Cards []apiEntry `json:"cards"`
}

type apiEntry struct {
	Quantity   *int     `json:"quantity"`
	Categories []string `json:"categories"`
	Modifier   string   `json:"modifier"`
	Card       struct {
		Name            string `json:"name"`
		Rarity          string `json:"rarity"`
		CollectorNumber string `json:"collectorNumber"`
		Edition         struct {
			Name string `json:"editionname"`
			Code string `json:"editioncode"`
		} `json:"edition"`
		Oracle struct {
			Name          string    `json:"name"`
			ManaCost      string    `json:"manaCost"`
			CMC           float64   `json:"cmc"`
			Types         []string  `json:"types"`
			SuperTypes    []string  `json:"superTypes"`
			SubTypes      []string  `json:"subTypes"`
			Colors        []string  `json:"colors"`
			ColorIdentity []string  `json:"colorIdentity"`
			Text          string    `json:"text"`
			Power         deck.Text `json:"power"`
			Toughness     deck.Text `json:"toughness"`
			Loyalty       deck.Text `json:"loyalty"`
		} `json:"oracleCard"`
	} `json:"card"`
}

// Option is a functional option for [New].
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL] for API requests. Deck URLs are
// still validated against archidekt.com.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// Client imports Archidekt decks.
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

// APIURL returns the API endpoint for a deck id.
func (c *Client) APIURL(id string) string {
	return c.baseURL + "/api/decks/" + id + "/"
}

// Fetch imports the deck at deckURL. A URL that does not match the Archidekt
// deck shape yields an [upstream.KindValidation] error without any request.
func (c *Client) Fetch(ctx context.Context, deckURL string) (*deck.Deck, error) {
	id, ok := DeckID(deckURL)
	if !ok {
		return nil, upstream.Validation(API, "invalid Archidekt deck URL")
	}
	apiURL := c.APIURL(id)

	var raw apiDeck
	if err := c.http.GetJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("archidekt: deck %s: %w", id, err)
	}
	d := normalize(&raw)
	d.APIURL = apiURL
	if d.Info.ID == "" {
		d.Info.ID = id
	}
	return d, nil
}

func normalize(raw *apiDeck) *deck.Deck {
	d := &deck.Deck{
		Source: Source,
		Info: deck.Info{
			ID:          string(raw.ID),
			Name:        raw.Name,
			Description: raw.Description,
			Format:      string(raw.DeckFormat),
			Owner:       raw.Owner.Username,
			ViewCount:   raw.ViewCount,
			CreatedAt:   raw.CreatedAt,
			UpdatedAt:   raw.UpdatedAt,
		},
		Commanders:     []deck.Card{},
		Cards:          make([]deck.Card, 0, len(raw.Cards)),
		BoardCounts:    map[string]int{},
		Categories:     map[string]deck.Category{},
		CategoryCounts: map[string]int{},
	}
	if d.Info.Owner == "" {
		d.Info.Owner = "Unknown"
	}

	included := map[string]bool{}
	for _, cat := range raw.Categories {
		in := cat.IncludedInDeck == nil || *cat.IncludedInDeck
		name := cat.Name
		if name == "" {
			name = "Unknown"
		}
		d.Categories[string(cat.ID)] = deck.Category{Name: name, IsPremier: cat.IsPremier, IncludedInDeck: in}
		included[strings.ToLower(name)] = in
	}

	for _, e := range raw.Cards {
		card := entryCard(e)
		card.Board = board(e.Categories, included)
		for _, cat := range e.Categories {
			d.CategoryCounts[cat] += card.Quantity
		}
		d.BoardCounts[card.Board] += card.Quantity
		d.TotalCards += card.Quantity
		if card.Board == deck.Commanders {
			d.Commanders = append(d.Commanders, card)
		}
		d.Cards = append(d.Cards, card)
	}
	return d
}

// board derives a board from category labels. Any label equal to
// "commander" marks a commander. Otherwise the first label decides: a
// category excluded from the deck is the sideboard when it is named so and
// the maybeboard otherwise.
func board(categories []string, included map[string]bool) string {
	for _, cat := range categories {
		if strings.EqualFold(cat, "commander") {
			return deck.Commanders
		}
	}
	if len(categories) == 0 {
		return deck.Mainboard
	}
	first := strings.ToLower(categories[0])
	if in, ok := included[first]; ok && !in {
		if first == deck.Sideboard {
			return deck.Sideboard
		}
		return deck.Maybeboard
	}
	return deck.Mainboard
}

func entryCard(e apiEntry) deck.Card {
	o := e.Card.Oracle
	qty := 1
	if e.Quantity != nil {
		qty = *e.Quantity
	}
	name := o.Name
	if name == "" {
		name = e.Card.Name
	}
	if name == "" {
		name = "Unknown"
	}
	modifier := e.Modifier
	if modifier == "" {
		modifier = "Normal"
	}
	return deck.Card{
		Quantity:        qty,
		Name:            name,
		ManaCost:        o.ManaCost,
		CMC:             o.CMC,
		TypeLine:        typeLine(o.SuperTypes, o.Types, o.SubTypes),
		OracleText:      o.Text,
		Colors:          nonNil(o.Colors),
		ColorIdentity:   nonNil(o.ColorIdentity),
		Power:           o.Power,
		Toughness:       o.Toughness,
		Loyalty:         o.Loyalty,
		Rarity:          e.Card.Rarity,
		Set:             e.Card.Edition.Name,
		SetCode:         e.Card.Edition.Code,
		CollectorNumber: e.Card.CollectorNumber,
		Categories:      nonNil(e.Categories),
		Modifier:        modifier,
	}
}

// typeLine rebuilds a printed type line, e.g. "Legendary Creature — Angel".
func typeLine(super, types, sub []string) string {
	line := strings.Join(append(append([]string{}, super...), types...), " ")
	if len(sub) > 0 {
		line += " — " + strings.Join(sub, " ")
	}
	return line
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
