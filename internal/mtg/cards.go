package mtg

import (
	"context"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
	"github.com/MrWong99/mtgctx/internal/upstream/spellbook"
)

// exampleCards is the number of example cards listed per main type.
const exampleCards = 3

// subtypeCatalogs maps the subtype groups to their Scryfall catalog, in
// display order.
var subtypeCatalogs = []struct{ group, catalog string }{
	{"Creature", "creature-types"},
	{"Land", "land-types"},
	{"Artifact", "artifact-types"},
	{"Enchantment", "enchantment-types"},
	{"Planeswalker", "planeswalker-types"},
	{"Spell", "spell-types"},
}

// defaultSupertypes is served when the supertype catalog is unavailable.
var defaultSupertypes = []string{"Basic", "Legendary", "Snow", "World", "Ongoing"}

// MainType describes one main card type.
type MainType struct {
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Timing      string   `json:"timing,omitempty"`
	Rules       string   `json:"rules,omitempty"`
}

// CardTypes is the card type taxonomy.
type CardTypes struct {
	MainTypes  *orderedmap.OrderedMap[string, MainType] `json:"main_types"`
	Subtypes   *orderedmap.OrderedMap[string, []string] `json:"subtypes"`
	Supertypes []string                                 `json:"supertypes"`
}

// CardTypes returns the static type descriptions with live example cards,
// subtypes and supertypes. Every live lookup degrades to a default.
func (s *Service) CardTypes(ctx context.Context) (*CardTypes, error) {
	types := s.ref.CardTypes
	var (
		known      map[string]bool
		knownErr   error
		examples   = make([][]string, len(types))
		subtypes   = make([][]string, len(subtypeCatalogs))
		supertypes []string
	)

	var g errgroup.Group
	g.Go(func() error {
		var names []string
		names, knownErr = s.src.Cards.Catalog(ctx, "card-types")
		known = make(map[string]bool, len(names))
		for _, n := range names {
			known[n] = true
		}
		return nil
	})
	for i, t := range types {
		g.Go(func() error {
			examples[i] = s.exampleCards(ctx, t.Name)
			return nil
		})
	}
	for i, sc := range subtypeCatalogs {
		g.Go(func() error {
			names, err := s.src.Cards.Catalog(ctx, sc.catalog)
			if err != nil {
				observe.Logger(ctx).Warn("subtype catalog unavailable", "catalog", sc.catalog, "err", err)
			}
			subtypes[i] = nonNil(names)
			return nil
		})
	}
	g.Go(func() error {
		names, err := s.src.Cards.Catalog(ctx, "supertypes")
		if err != nil || len(names) == 0 {
			names = defaultSupertypes
		}
		supertypes = names
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &CardTypes{
		MainTypes:  orderedmap.New[string, MainType](),
		Subtypes:   orderedmap.New[string, []string](),
		Supertypes: supertypes,
	}
	for i, t := range types {
		if knownErr == nil && !known[t.Name] {
			continue
		}
		mt := MainType{Description: t.Description, Examples: []string{}, Timing: t.Timing, Rules: t.Rules}
		if knownErr == nil {
			mt.Examples = examples[i]
		}
		out.MainTypes.Set(t.Name, mt)
	}
	for i, sc := range subtypeCatalogs {
		out.Subtypes.Set(sc.group, subtypes[i])
	}
	return out, nil
}

// exampleCards returns up to three popular card names of the given type.
func (s *Service) exampleCards(ctx context.Context, typeName string) []string {
	cards, err := s.src.Cards.Search(ctx, "t:"+strings.ToLower(typeName), "edhrec", exampleCards)
	if err != nil {
		observe.Logger(ctx).Debug("example cards unavailable", "type", typeName, "err", err)
		return []string{}
	}
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		names = append(names, c.Name)
	}
	return names
}

// RulingResult lists the official rulings of one card.
type RulingResult struct {
	CardName   string            `json:"card_name"`
	TypeLine   string            `json:"type_line"`
	OracleText string            `json:"oracle_text"`
	Total      int               `json:"total_rulings"`
	Rulings    []scryfall.Ruling `json:"rulings"`
	Source     string            `json:"source"`
	Note       string            `json:"note"`
}

// Rulings resolves name fuzzily and returns the card's rulings.
func (s *Service) Rulings(ctx context.Context, name string) (*RulingResult, error) {
	card, err := s.src.Cards.Named(ctx, name, scryfall.Fuzzy)
	if err != nil {
		msg := "Card not found"
		if upstream.KindOf(err) == upstream.KindTransport {
			msg = "Failed to fetch rulings"
		}
		return nil, Fail(msg, err).With("card_name", name)
	}
	if card.ID == "" {
		return nil, Fail("Could not retrieve card ID", nil).With("card_name", name)
	}

	rulings, err := s.src.Cards.Rulings(ctx, card.ID)
	if err != nil {
		return nil, Fail("Could not fetch rulings", err).With("card_name", card.Name)
	}
	return &RulingResult{
		CardName:   card.Name,
		TypeLine:   card.TypeLine,
		OracleText: card.Oracle(),
		Total:      len(rulings),
		Rulings:    nonNil(rulings),
		Source:     "Scryfall",
		Note:       "Rulings are official clarifications from judges and Wizards of the Coast",
	}, nil
}

// ComboResult lists combo variants involving one card.
type ComboResult struct {
	CardName       string            `json:"card_name"`
	TotalCombos    int               `json:"total_combos"`
	CombosReturned int               `json:"combos_returned"`
	Combos         []spellbook.Combo `json:"combos"`
	Source         string            `json:"source"`
	Query          string            `json:"query"`
	APIURL         string            `json:"api_url"`
	Note           string            `json:"note"`
	Message        string            `json:"message,omitempty"`
}

// Combos returns up to five Commander legal combos involving name.
func (s *Service) Combos(ctx context.Context, name string) (*ComboResult, error) {
	res, err := s.src.Combos.Search(ctx, name)
	if err != nil {
		return nil, Fail("Failed to fetch combos", err).With("card_name", name)
	}
	out := &ComboResult{
		CardName:       name,
		TotalCombos:    res.Total,
		CombosReturned: len(res.Combos),
		Combos:         nonNil(res.Combos),
		Source:         "Commander Spellbook",
		Query:          res.Query,
		APIURL:         res.URL,
		Note:           "These are known card combinations in Commander format",
	}
	if len(res.Combos) == 0 {
		out.Message = "No combos found for '" + name + "'"
	}
	return out, nil
}
