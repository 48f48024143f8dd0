// Package moxfield imports decks from moxfield.com.
package moxfield

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
)

// API is the rate limiter key for Moxfield.
const API = "moxfield"

// DefaultBaseURL is the Moxfield API host.
const DefaultBaseURL = "https://api2.moxfield.com"

// Source is the source label on imported decks.
const Source = "Moxfield"

// Accepted deck URL shape.
const (
	ExpectedFormat = "https://moxfield.com/decks/{deck_id}"
	ExampleURL     = "https://moxfield.com/decks/TdOsPBP3302BdskyLVzU-A"
)

var deckURL = regexp.MustCompile(`^https?://(?:www\.)?moxfield\.com/decks/([a-zA-Z0-9_-]+)`)

// DeckID extracts the public deck id from a Moxfield deck URL.
func DeckID(rawURL string) (string, bool) {
	m := deckURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

type apiDeck struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Format        string `json:"format"`
	PublicURL     string `json:"publicUrl"`
	PublicID      string `json:"publicId"`
	Visibility    string `json:"visibility"`
	LikeCount     int    `json:"likeCount"`
	ViewCount     int    `json:"viewCount"`
	CommentCount  int    `json:"commentCount"`
	CreatedAtUTC  string `json:"createdAtUtc"`
	LastUpdated   string `json:"lastUpdatedAtUtc"`
	CreatedByUser struct {
		DisplayName string `json:"displayName"`
	} `json:"createdByUser"`
	Authors []struct {
		DisplayName string `json:"displayName"`
	} `json:"authors"`
	// Boards maps board name to board. Values are kept raw so a board with
	// an unexpected shape can be skipped instead of failing the import.
	Boards map[string]json.RawMessage `json:"boards"`
}

type apiBoard struct {
	Count int                 `json:"count"`
	Cards map[string]apiEntry `json:"cards"`
}

type apiEntry struct {
	Quantity *int   `json:"quantity"`
	IsFoil   bool   `json:"isFoil"`
	Finish   string `json:"finish"`
	Card     struct {
		Name          string    `json:"name"`
		ManaCost      string    `json:"mana_cost"`
		CMC           float64   `json:"cmc"`
		TypeLine      string    `json:"type_line"`
		OracleText    string    `json:"oracle_text"`
		Colors        []string  `json:"colors"`
		ColorIdentity []string  `json:"color_identity"`
		Power         deck.Text `json:"power"`
		Toughness     deck.Text `json:"toughness"`
		Loyalty       deck.Text `json:"loyalty"`
		Rarity        string    `json:"rarity"`
		SetName       string    `json:"set_name"`
		Set           string    `json:"set"`
		CN            string    `json:"cn"`
	} `json:"card"`
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

// Client imports Moxfield decks.
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
	return c.baseURL + "/v3/decks/all/" + id
}

// Fetch imports the deck at deckURL. A URL that does not match the Moxfield
// deck shape yields an [upstream.KindValidation] error without any request.
func (c *Client) Fetch(ctx context.Context, deckURL string) (*deck.Deck, error) {
	id, ok := DeckID(deckURL)
	if !ok {
		return nil, upstream.Validation(API, "invalid Moxfield deck URL")
	}
	apiURL := c.APIURL(id)

	var raw apiDeck
	if err := c.http.GetJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("moxfield: deck %s: %w", id, err)
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
			ID:           raw.ID,
			Name:         raw.Name,
			Description:  raw.Description,
			Format:       raw.Format,
			Owner:        raw.CreatedByUser.DisplayName,
			Authors:      []string{},
			PublicURL:    raw.PublicURL,
			Visibility:   raw.Visibility,
			ViewCount:    raw.ViewCount,
			LikeCount:    raw.LikeCount,
			CommentCount: raw.CommentCount,
			CreatedAt:    raw.CreatedAtUTC,
			UpdatedAt:    raw.LastUpdated,
		},
		Commanders:  []deck.Card{},
		Cards:       []deck.Card{},
		BoardCounts: map[string]int{},
	}
	if d.Info.Owner == "" {
		d.Info.Owner = "Unknown"
	}
	for _, a := range raw.Authors {
		name := a.DisplayName
		if name == "" {
			name = "Unknown"
		}
		d.Info.Authors = append(d.Info.Authors, name)
	}

	for name, rawBoard := range raw.Boards {
		var b apiBoard
		if err := json.Unmarshal(rawBoard, &b); err != nil {
			continue
		}
		d.BoardCounts[name] = b.Count
		for _, e := range b.Cards {
			card := entryCard(name, e)
			d.Cards = append(d.Cards, card)
			if name == deck.Commanders {
				d.Commanders = append(d.Commanders, card)
			}
		}
	}
	deck.SortCards(d.Cards)
	deck.SortCards(d.Commanders)

	d.TotalCards = d.Count(deck.Mainboard) + d.Count(deck.Sideboard) + d.Count(deck.Commanders)
	return d
}

func entryCard(board string, e apiEntry) deck.Card {
	c := e.Card
	qty := 1
	if e.Quantity != nil {
		qty = *e.Quantity
	}
	name := c.Name
	if name == "" {
		name = "Unknown"
	}
	finish := e.Finish
	if finish == "" {
		finish = "nonFoil"
	}
	return deck.Card{
		Quantity:        qty,
		Board:           board,
		Name:            name,
		ManaCost:        c.ManaCost,
		CMC:             c.CMC,
		TypeLine:        c.TypeLine,
		OracleText:      c.OracleText,
		Colors:          nonNil(c.Colors),
		ColorIdentity:   nonNil(c.ColorIdentity),
		Power:           c.Power,
		Toughness:       c.Toughness,
		Loyalty:         c.Loyalty,
		Rarity:          c.Rarity,
		Set:             c.SetName,
		SetCode:         c.Set,
		CollectorNumber: c.CN,
		IsFoil:          e.IsFoil,
		Finish:          finish,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
