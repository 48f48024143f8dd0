// Package deck defines the normalized deck import result shared by the deck
// hosting adapters.
package deck

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Board names used across sources.
const (
	Commanders = "commanders"
	Mainboard  = "mainboard"
	Sideboard  = "sideboard"
	Maybeboard = "maybeboard"
)

// Text is a scalar that upstreams encode inconsistently as a string or a
// number (power, toughness, deck format ids). It always decodes to a string
// and never fails on other scalar shapes.
type Text string

// UnmarshalJSON implements [json.Unmarshaler].
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) || (len(data) > 0 && (data[0] == '{' || data[0] == '[')) {
		*t = ""
		return nil
	}
	*t = Text(data)
	return nil
}

// Card is one deck entry.
type Card struct {
	Quantity        int      `json:"quantity"`
	Board           string   `json:"board"`
	Name            string   `json:"name"`
	ManaCost        string   `json:"mana_cost"`
	CMC             float64  `json:"cmc"`
	TypeLine        string   `json:"type_line"`
	OracleText      string   `json:"oracle_text"`
	Colors          []string `json:"colors"`
	ColorIdentity   []string `json:"color_identity"`
	Power           Text     `json:"power,omitempty"`
	Toughness       Text     `json:"toughness,omitempty"`
	Loyalty         Text     `json:"loyalty,omitempty"`
	Rarity          string   `json:"rarity"`
	Set             string   `json:"set"`
	SetCode         string   `json:"set_code"`
	CollectorNumber string   `json:"collector_number"`
	Categories      []string `json:"categories,omitempty"`
	Modifier        string   `json:"modifier,omitempty"`
	Finish          string   `json:"finish,omitempty"`
	IsFoil          bool     `json:"is_foil,omitempty"`
}

// Info is the deck metadata.
type Info struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Format       string   `json:"format"`
	Owner        string   `json:"owner"`
	Authors      []string `json:"authors,omitempty"`
	PublicURL    string   `json:"public_url,omitempty"`
	Visibility   string   `json:"visibility,omitempty"`
	ViewCount    int      `json:"view_count"`
	LikeCount    int      `json:"like_count,omitempty"`
	CommentCount int      `json:"comment_count,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

// Category is an Archidekt deck category.
type Category struct {
	Name           string `json:"name"`
	IsPremier      bool   `json:"is_premier"`
	IncludedInDeck bool   `json:"included_in_deck"`
}

// Deck is a normalized deck import.
type Deck struct {
	Source      string         `json:"source"`
	APIURL      string         `json:"api_url"`
	Info        Info           `json:"deck_info"`
	Commanders  []Card         `json:"commanders"`
	Cards       []Card         `json:"cards"`
	BoardCounts map[string]int `json:"board_counts"`
	TotalCards  int            `json:"total_cards"`

	// Archidekt only.
	Categories     map[string]Category `json:"categories,omitempty"`
	CategoryCounts map[string]int      `json:"category_counts,omitempty"`
}

// CommanderNames returns the commanders' names in deck order.
func (d *Deck) CommanderNames() []string {
	names := make([]string, 0, len(d.Commanders))
	for _, c := range d.Commanders {
		names = append(names, c.Name)
	}
	return names
}

// Count returns the number of cards on board according to BoardCounts.
func (d *Deck) Count(board string) int { return d.BoardCounts[board] }

// SortCards orders cards by board then name so output is stable across
// map-backed upstream payloads.
func SortCards(cards []Card) {
	rank := map[string]int{Commanders: 0, Mainboard: 1, Sideboard: 2, Maybeboard: 3}
	sort.SliceStable(cards, func(i, j int) bool {
		ri, iok := rank[cards[i].Board]
		rj, jok := rank[cards[j].Board]
		if !iok {
			ri = len(rank)
		}
		if !jok {
			rj = len(rank)
		}
		if ri != rj {
			return ri < rj
		}
		if cards[i].Board != cards[j].Board {
			return cards[i].Board < cards[j].Board
		}
		return strings.ToLower(cards[i].Name) < strings.ToLower(cards[j].Name)
	})
}
