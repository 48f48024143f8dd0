package mtg

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/edhrec"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
)

// maxRecommendations caps both the entries taken per card list and the final
// recommendation list.
const maxRecommendations = 10

// recommendationHeaders are the card list headers, lowercased, whose entries
// are eligible as recommendations.
var recommendationHeaders = []string{
	"top cards", "high synergy", "creatures", "artifacts", "enchantments",
	"instants", "sorceries", "planeswalkers",
}

// Recommendation is one recommended card.
type Recommendation struct {
	Name                string   `json:"name"`
	SanitizedName       string   `json:"sanitized_name"`
	Label               string   `json:"label"`
	NumDecks            int      `json:"num_decks"`
	PotentialDecks      int      `json:"potential_decks"`
	Synergy             *float64 `json:"synergy"`
	Category            string   `json:"category"`
	InclusionPercentage *float64 `json:"inclusion_percentage,omitempty"`
	Prices              *Prices  `json:"prices"`
	ManaCost            string   `json:"mana_cost"`
	CMC                 float64  `json:"cmc"`
	TypeLine            string   `json:"type_line,omitempty"`
}

// Prices are the retail prices reported for a recommendation.
type Prices struct {
	USD     *string `json:"usd"`
	USDFoil *string `json:"usd_foil"`
	EUR     *string `json:"eur"`
}

// Recommendations is the result of [Service.Recommend].
type Recommendations struct {
	CardName             string           `json:"card_name"`
	TypeLine             string           `json:"type_line"`
	IsLegendaryCreature  bool             `json:"is_legendary_creature"`
	TotalDecks           int              `json:"total_decks"`
	TopCards             []Recommendation `json:"top_cards"`
	TotalRecommendations int              `json:"total_recommendations"`
	Source               string           `json:"source"`
	EDHRECURL            string           `json:"edhrec_url"`

	CommanderContext  Document  `json:"commander_context,omitempty"`
	CommanderBrackets *Brackets `json:"commander_brackets,omitempty"`
	Note              string    `json:"note,omitempty"`
}

// RecommendOptions controls [Service.Recommend].
type RecommendOptions struct {
	// IncludeContext embeds the Commander format context and the bracket
	// catalog in the result. Callers composing Recommend into a larger
	// response leave it off.
	IncludeContext bool
}

// Recommend returns the top EDHREC recommendations for name, each enriched
// with prices. The card is resolved fuzzily; its commander page is tried
// first and its card page when EDHREC has no commander page for it.
func (s *Service) Recommend(ctx context.Context, name string, opts RecommendOptions) (*Recommendations, error) {
	card, err := s.src.Cards.Named(ctx, name, scryfall.Fuzzy)
	if err != nil {
		switch upstream.KindOf(err) {
		case upstream.KindNotFound:
			return nil, Fail(fmt.Sprintf("Card '%s' not found", name), err).
				With("card_name", name).
				With("suggestion", "Check the spelling or try a different card name")
		case upstream.KindUpstream:
			return nil, Fail(fmt.Sprintf("Failed to fetch card information for '%s'", name), err).
				With("card_name", name)
		default:
			return nil, Fail("Failed to fetch EDHREC recommendations", err).With("card_name", name)
		}
	}

	legendary := strings.Contains(card.TypeLine, "Legendary")
	creature := strings.Contains(card.TypeLine, "Creature")
	slug := edhrec.Slug(card.Name)

	kind := edhrec.Commanders
	page, err := s.src.Recommendations.Page(ctx, kind, slug)
	if upstream.IsNotFound(err) {
		kind = edhrec.Cards
		page, err = s.src.Recommendations.Page(ctx, kind, slug)
		if upstream.IsNotFound(err) {
			return nil, Fail(fmt.Sprintf("No EDHREC data found for '%s'", card.Name), err).
				With("card_name", card.Name).
				With("is_legendary", legendary).
				With("is_creature", creature).
				With("suggestion", "This card may not have EDHREC commander data available")
		}
	}
	if err != nil {
		return nil, Fail("Failed to fetch EDHREC recommendations", err).With("card_name", card.Name)
	}

	top := collectRecommendations(page)
	total := len(top)
	sort.SliceStable(top, func(i, j int) bool { return top[i].NumDecks > top[j].NumDecks })
	if len(top) > maxRecommendations {
		top = top[:maxRecommendations]
	}
	s.price(ctx, top)

	out := &Recommendations{
		CardName:             card.Name,
		TypeLine:             card.TypeLine,
		IsLegendaryCreature:  legendary && creature,
		TotalDecks:           page.NumDecks,
		TopCards:             nonNil(top),
		TotalRecommendations: total,
		Source:               "EDHREC",
		EDHRECURL:            edhrec.PageURL(kind, slug),
	}
	if opts.IncludeContext {
		cc, err := s.CommanderContext(ctx)
		if err != nil {
			return nil, err
		}
		out.CommanderContext = cc
		out.CommanderBrackets = s.Brackets()
		out.Note = "Additional Commander format context and bracket information included"
	}
	return out, nil
}

// collectRecommendations scans the card lists in page order and takes up to
// ten entries from each list whose header matches, stopping once ten have
// been collected.
func collectRecommendations(page *edhrec.Page) []Recommendation {
	var out []Recommendation
	for _, list := range page.CardLists {
		if !isRecommendationHeader(list.Header) {
			continue
		}
		views := list.CardViews
		if len(views) > maxRecommendations {
			views = views[:maxRecommendations]
		}
		for _, v := range views {
			r := Recommendation{
				Name:           v.Name,
				SanitizedName:  v.SanitizedWO,
				Label:          v.Label,
				NumDecks:       v.NumDecks,
				PotentialDecks: v.PotentialDecks,
				Synergy:        v.Synergy,
				Category:       list.Header,
			}
			if v.PotentialDecks > 0 {
				pct := math.Round(float64(v.NumDecks)/float64(v.PotentialDecks)*1000) / 10
				r.InclusionPercentage = &pct
			}
			out = append(out, r)
		}
		if len(out) >= maxRecommendations {
			break
		}
	}
	return out
}

func isRecommendationHeader(header string) bool {
	h := strings.ToLower(header)
	for _, kw := range recommendationHeaders {
		if strings.Contains(h, kw) {
			return true
		}
	}
	return false
}

// price enriches recs in place. A card whose lookup fails keeps nil prices
// and an empty mana cost.
func (s *Service) price(ctx context.Context, recs []Recommendation) {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	for i, card := range s.lookupEach(ctx, names) {
		if card == nil {
			continue
		}
		p := card.Prices
		recs[i].Prices = &Prices{USD: p.USD, USDFoil: p.USDFoil, EUR: p.EUR}
		recs[i].ManaCost = card.ManaCost
		recs[i].CMC = card.CMC
		recs[i].TypeLine = card.TypeLine
	}
	if n := countPriced(recs); n < len(recs) {
		observe.Logger(ctx).Debug("some recommendations left unpriced", "priced", n, "total", len(recs))
	}
}

func countPriced(recs []Recommendation) int {
	n := 0
	for _, r := range recs {
		if r.Prices != nil {
			n++
		}
	}
	return n
}
