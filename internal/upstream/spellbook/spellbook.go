// Package spellbook queries the Commander Spellbook combo database.
package spellbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

// API is the rate limiter key for Commander Spellbook.
const API = "commanderspellbook"

// DefaultBaseURL is the public Commander Spellbook backend.
const DefaultBaseURL = "https://backend.commanderspellbook.com"

// MaxResults caps how many variants a search returns.
const MaxResults = 5

// NamedRef is a nested reference that the API encodes either as an object
// with a "name" property or as a bare string. Both decode to Name.
type NamedRef struct {
	Name string
}

// UnmarshalJSON implements [json.Unmarshaler].
func (n *NamedRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		n.Name = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &n.Name)
	case len(data) > 0 && data[0] == '{':
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		n.Name = obj.Name
		return nil
	}
	return fmt.Errorf("spellbook: unexpected reference %s", data)
}

// variant is the wire shape of a combo variant.
type variant struct {
	ID     json.RawMessage `json:"id"`
	Status string          `json:"status"`
	Uses   []struct {
		Card NamedRef `json:"card"`
	} `json:"uses"`
	Requires []struct {
		Template NamedRef `json:"template"`
	} `json:"requires"`
	Produces []struct {
		Feature NamedRef `json:"feature"`
	} `json:"produces"`
	Identity             string `json:"identity"`
	ManaNeeded           string `json:"manaNeeded"`
	EasyPrerequisites    string `json:"easyPrerequisites"`
	NotablePrerequisites string `json:"notablePrerequisites"`
	OtherPrerequisites   string `json:"otherPrerequisites"`
	Description          string `json:"description"`
	Popularity           *int   `json:"popularity"`
}

// Combo is a normalized combo variant.
type Combo struct {
	ID            string   `json:"id"`
	Cards         []string `json:"cards"`
	Templates     []string `json:"templates,omitempty"`
	ColorIdentity string   `json:"color_identity"`
	Prerequisites string   `json:"prerequisites"`
	Steps         string   `json:"steps"`
	Results       []string `json:"results"`
	ManaNeeded    string   `json:"mana_needed"`
	Popularity    *int     `json:"popularity"`
	Status        string   `json:"status"`
}

func (v variant) normalize() Combo {
	c := Combo{
		ID:            rawID(v.ID),
		Cards:         []string{},
		Results:       []string{},
		ColorIdentity: v.Identity,
		Steps:         v.Description,
		ManaNeeded:    v.ManaNeeded,
		Popularity:    v.Popularity,
		Status:        v.Status,
	}
	for _, u := range v.Uses {
		if u.Card.Name != "" {
			c.Cards = append(c.Cards, u.Card.Name)
		}
	}
	for _, r := range v.Requires {
		if r.Template.Name != "" {
			c.Templates = append(c.Templates, r.Template.Name)
		}
	}
	for _, p := range v.Produces {
		if p.Feature.Name != "" {
			c.Results = append(c.Results, p.Feature.Name)
		}
	}
	var pre []string
	for _, s := range []string{v.EasyPrerequisites, v.NotablePrerequisites, v.OtherPrerequisites} {
		if s = strings.TrimSpace(s); s != "" {
			pre = append(pre, s)
		}
	}
	c.Prerequisites = strings.Join(pre, "\n")
	return c
}

// rawID renders an id that may be encoded as a string or a number.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Result is the outcome of [Client.Search].
type Result struct {
	// Total is the number of matching variants the server reported.
	Total  int
	Combos []Combo
	// Query is the search expression sent upstream.
	Query string
	// URL is the request URL.
	URL string
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

// Client queries Commander Spellbook.
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

// Query returns the search expression used for cardName.
func Query(cardName string) string {
	return `card:"` + cardName + `" legal:commander`
}

// Search returns up to [MaxResults] commander-legal combos that use cardName.
// Only the first result page is read.
func (c *Client) Search(ctx context.Context, cardName string) (*Result, error) {
	q := Query(cardName)
	u := c.baseURL + "/variants/?" + url.Values{
		"q":     {q},
		"limit": {strconv.Itoa(MaxResults)},
	}.Encode()

	var page struct {
		Count   int       `json:"count"`
		Results []variant `json:"results"`
	}
	if err := c.http.GetJSON(ctx, u, &page); err != nil {
		return nil, fmt.Errorf("spellbook: search %q: %w", cardName, err)
	}

	res := &Result{Total: page.Count, Query: q, URL: u, Combos: []Combo{}}
	for i, v := range page.Results {
		if i == MaxResults {
			break
		}
		res.Combos = append(res.Combos, v.normalize())
	}
	if res.Total < len(res.Combos) {
		res.Total = len(res.Combos)
	}
	return res, nil
}
