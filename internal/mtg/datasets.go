package mtg

import (
	"context"
	"sort"

	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
)

// bannedQuery is the Scryfall search for the Commander banned list.
const bannedQuery = "banned:commander"

// CardSummary is the projection of a card used in dataset listings.
type CardSummary struct {
	Name          string   `json:"name"`
	TypeLine      string   `json:"type_line"`
	ManaCost      string   `json:"mana_cost"`
	CMC           float64  `json:"cmc"`
	ColorIdentity []string `json:"color_identity"`
	OracleText    string   `json:"oracle_text"`
	ScryfallURI   string   `json:"scryfall_uri"`
}

func summarize(c *scryfall.Card) CardSummary {
	return CardSummary{
		Name:          c.Name,
		TypeLine:      c.TypeLine,
		ManaCost:      c.ManaCost,
		CMC:           c.CMC,
		ColorIdentity: nonNil(c.ColorIdentity),
		OracleText:    c.Oracle(),
		ScryfallURI:   c.ScryfallURI,
	}
}

// BannedList is the Commander banned list dataset.
type BannedList struct {
	Source      string        `json:"source"`
	Description string        `json:"description"`
	BannedCards []string      `json:"banned_cards"`
	Details     []CardSummary `json:"banned_cards_with_details"`
	Total       int           `json:"total_banned"`
	LastFetched string        `json:"last_fetched"`
	Note        string        `json:"note"`
	Reference   string        `json:"reference"`
}

func (s *Service) fetchBannedList(ctx context.Context) (*BannedList, error) {
	cards, err := s.src.Cards.SearchAll(ctx, bannedQuery, "name")
	if err != nil {
		return nil, Fail("Failed to fetch banned cards", err).With("source", "Scryfall API")
	}
	details := make([]CardSummary, 0, len(cards))
	for i := range cards {
		details = append(details, summarize(&cards[i]))
	}
	sort.SliceStable(details, func(i, j int) bool { return details[i].Name < details[j].Name })

	names := make([]string, len(details))
	for i, d := range details {
		names[i] = d.Name
	}
	return &BannedList{
		Source:      "Scryfall API",
		Description: "Cards banned in the Commander format",
		BannedCards: names,
		Details:     details,
		Total:       len(names),
		LastFetched: "dynamic",
		Note:        "This list is automatically updated from Scryfall's database",
		Reference:   "https://mtgcommander.net for official Commander ban list",
	}, nil
}

// BannedList returns the cached Commander banned list.
func (s *Service) BannedList(ctx context.Context) (*BannedList, error) {
	return s.banned.Get(ctx)
}

// GameChanger is one entry of the game changer list.
type GameChanger struct {
	Name          string           `json:"name"`
	NumDecks      int              `json:"num_decks"`
	Label         string           `json:"label"`
	Sanitized     string           `json:"sanitized"`
	TypeLine      string           `json:"type_line"`
	ManaCost      string           `json:"mana_cost"`
	Colors        []string         `json:"colors"`
	ColorIdentity []string         `json:"color_identity"`
	OracleText    string           `json:"oracle_text"`
	ScryfallURI   string           `json:"scryfall_uri"`
	Prices        *scryfall.Prices `json:"prices"`
}

// GameChangerList is the game changer dataset.
type GameChangerList struct {
	Source            string            `json:"source"`
	Description       string            `json:"description"`
	Cards             []string          `json:"cards"`
	Details           []GameChanger     `json:"cards_with_details"`
	Total             int               `json:"total_cards"`
	LastFetched       string            `json:"last_fetched"`
	BracketGuidelines map[string]string `json:"bracket_guidelines"`
	Note              string            `json:"note"`
	URL               string            `json:"url"`
	WebURL            string            `json:"web_url"`
}

// gameChangerGuidelines maps bracket groups to game changer allowances.
var gameChangerGuidelines = map[string]string{
	"bracket_1_2": "Generally avoid game changers (Casual/Exhibition and Core decks)",
	"bracket_3":   "Generally run up to 3 game changers (Upgraded decks)",
	"bracket_4_5": "Unrestricted on game changers (Optimized and cEDH decks)",
}

// fetchGameChangers dedupes the list by name, first occurrence wins, and
// orders it by deck count, most played first.
func (s *Service) fetchGameChangers(ctx context.Context) (*GameChangerList, error) {
	url := s.src.Recommendations.GameChangersURL()
	page, err := s.src.Recommendations.GameChangers(ctx)
	if err != nil {
		return nil, Fail("Failed to fetch game changers", err).With("source", url)
	}

	var entries []GameChanger
	seen := make(map[string]bool)
	for _, list := range page.CardLists {
		for _, v := range list.CardViews {
			if v.Name == "" || seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			entries = append(entries, GameChanger{
				Name:          v.Name,
				NumDecks:      v.NumDecks,
				Label:         v.Label,
				Sanitized:     v.Sanitized,
				Colors:        []string{},
				ColorIdentity: []string{},
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].NumDecks > entries[j].NumDecks })

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	for i, card := range s.lookupEach(ctx, names) {
		if card == nil {
			continue
		}
		e := &entries[i]
		e.TypeLine = card.TypeLine
		e.ManaCost = card.ManaCost
		e.Colors = nonNil(card.Colors)
		e.ColorIdentity = nonNil(card.ColorIdentity)
		e.OracleText = card.Oracle()
		e.ScryfallURI = card.ScryfallURI
		prices := card.Prices
		e.Prices = &prices
	}

	return &GameChangerList{
		Source:            "EDHREC JSON API",
		Description:       "Game changers are cards that dramatically warp commander games. They are part of the bracket system used by Wizards of the Coast to help players identify deck power levels.",
		Cards:             names,
		Details:           nonNil(entries),
		Total:             len(names),
		LastFetched:       "dynamic",
		BracketGuidelines: gameChangerGuidelines,
		Note:              "These cards significantly impact deck power level and should be discussed in Rule 0 conversations. This list is maintained by Wizards of the Coast and the Commander Format Panel.",
		URL:               url,
		WebURL:            "https://edhrec.com/top/game-changers",
	}, nil
}

// GameChangers returns the cached game changer list.
func (s *Service) GameChangers(ctx context.Context) (*GameChangerList, error) {
	return s.gameChangers.Get(ctx)
}

// lookupEach resolves every name with an exact lookup, one after another.
// The result is index aligned with names; a failed lookup leaves a nil entry
// and never aborts the loop. Once ctx is done the remaining entries are left
// nil.
func (s *Service) lookupEach(ctx context.Context, names []string) []*scryfall.Card {
	out := make([]*scryfall.Card, len(names))
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}
		card, err := s.src.Cards.Named(ctx, name, scryfall.Exact)
		if err != nil {
			observe.Logger(ctx).Debug("card enrichment skipped", "card", name, "err", err)
			continue
		}
		out[i] = card
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
