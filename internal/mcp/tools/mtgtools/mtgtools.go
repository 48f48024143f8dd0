// Package mtgtools exposes the Magic: The Gathering aggregators as MCP tools.
//
// Thirteen tools are exported via [Tools]:
//   - context:   "mtg.context.get", "mtg.context.commander"
//   - rules:     "mtg.rules.get", "mtg.rules.search", "mtg.cardtypes.get"
//   - cards:     "mtg.ruling.search", "mtg.combos.search", "mtg.commander.recommend"
//   - reference: "mtg.commander.brackets", "mtg.export.format"
//   - decks:     "mtg.commander.deck", "mtg.archidekt.fetch", "mtg.moxfield.fetch"
//
// Every tool answers with a JSON object. Failures are answered with an object
// carrying an "error" field and the context needed to diagnose them.
package mtgtools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/MrWong99/mtgctx/internal/mcp/tools"
	"github.com/MrWong99/mtgctx/internal/mtg"
)

// Instructions is announced to MCP clients on initialize.
const Instructions = "Magic: The Gathering context for Commander deck building. " +
	"Start with mtg.context.get or mtg.context.commander for format rules, " +
	"use mtg.commander.deck to gather everything needed to build a 100-card deck, " +
	"and mtg.archidekt.fetch or mtg.moxfield.fetch to import existing decks. " +
	"Failed calls return a JSON object with an \"error\" field."

// Tool names.
const (
	ContextGet         = "mtg.context.get"
	ContextCommander   = "mtg.context.commander"
	RulesGet           = "mtg.rules.get"
	RulesSearch        = "mtg.rules.search"
	CardTypesGet       = "mtg.cardtypes.get"
	RulingSearch       = "mtg.ruling.search"
	CombosSearch       = "mtg.combos.search"
	CommanderRecommend = "mtg.commander.recommend"
	CommanderBrackets  = "mtg.commander.brackets"
	ExportFormat       = "mtg.export.format"
	CommanderDeck      = "mtg.commander.deck"
	ArchidektFetch     = "mtg.archidekt.fetch"
	MoxfieldFetch      = "mtg.moxfield.fetch"
)

// Service is the aggregator surface the tools call. [*mtg.Service] implements
// it.
type Service interface {
	GameContext(ctx context.Context) (mtg.Document, error)
	CommanderContext(ctx context.Context) (mtg.Document, error)
	RulesInfo(ctx context.Context) (*mtg.RulesInfo, error)
	SearchRules(ctx context.Context, section, keyword string) (*mtg.RulesSearch, error)
	CardTypes(ctx context.Context) (*mtg.CardTypes, error)
	Rulings(ctx context.Context, name string) (*mtg.RulingResult, error)
	Combos(ctx context.Context, name string) (*mtg.ComboResult, error)
	Recommend(ctx context.Context, name string, opts mtg.RecommendOptions) (*mtg.Recommendations, error)
	Brackets() *mtg.Brackets
	ExportFormat() mtg.Document
	CommanderDeck(ctx context.Context, names []string, bracket int) (*mtg.CommanderDeck, error)
	ArchidektDeck(ctx context.Context, deckURL string) (*mtg.DeckImport, error)
	MoxfieldDeck(ctx context.Context, deckURL string) (*mtg.DeckImport, error)
}

var _ Service = (*mtg.Service)(nil)

// cardArgs is the input of the single-card tools. The snake_case spelling is
// accepted as well.
type cardArgs struct {
	CardName       string `json:"cardName"`
	CardNameSnake  string `json:"card_name"`
	IncludeContext *bool  `json:"includeContext"`
	IncludeSnake   *bool  `json:"include_context"`
}

func (a cardArgs) name() string {
	return strings.TrimSpace(firstNonEmpty(a.CardName, a.CardNameSnake))
}

// includeContext defaults to true.
func (a cardArgs) includeContext() bool {
	switch {
	case a.IncludeContext != nil:
		return *a.IncludeContext
	case a.IncludeSnake != nil:
		return *a.IncludeSnake
	}
	return true
}

type rulesSearchArgs struct {
	Section string `json:"section"`
	Keyword string `json:"keyword"`
}

type deckArgs struct {
	Commanders []string `json:"commanders"`
	Bracket    *int     `json:"bracket"`
}

type deckURLArgs struct {
	DeckURL      string `json:"deckUrl"`
	DeckURLSnake string `json:"deck_url"`
}

func (a deckURLArgs) url() string {
	return strings.TrimSpace(firstNonEmpty(a.DeckURL, a.DeckURLSnake))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// decode parses args into a T and maps a malformed argument object to a
// validation failure.
func decode[T any](args json.RawMessage) (T, error) {
	v, err := tools.Decode[T](args)
	if err != nil {
		return v, mtg.Invalid("Invalid arguments").With("details", err.Error())
	}
	return v, nil
}

// result adapts an aggregator return to a tool result. Cancellation passes
// through untouched; every other error becomes a [*mtg.Failure].
func result[T any](v *T, err error) (any, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, mtg.AsFailure(err)
	}
	return v, nil
}

func requireCardName(a cardArgs) (string, error) {
	name := a.name()
	if name == "" {
		return "", mtg.Invalid("cardName is required")
	}
	return name, nil
}

// Tools returns the MTG tools backed by svc.
func Tools(svc Service) []tools.Tool {
	cardName := tools.String("The name of the card. Misspellings are tolerated; the closest match is used.")
	deckURL := func(example string) map[string]any {
		return tools.String("The public deck URL, e.g. " + example)
	}

	ts := []tools.Tool{
		{
			Name:        ContextGet,
			Description: "Get the base context about Magic: The Gathering: game basics, card types, formats and the available tools.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				doc, err := svc.GameContext(ctx)
				return result(&doc, err)
			},
		},
		{
			Name:        ContextCommander,
			Description: "Get comprehensive information about the Commander/EDH format, including the live banned list and game changer list.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				doc, err := svc.CommanderContext(ctx)
				return result(&doc, err)
			},
		},
		{
			Name:        RulesGet,
			Description: "Get an overview of the MTG Comprehensive Rules: chapters and every available section number.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				v, err := svc.RulesInfo(ctx)
				return result(v, err)
			},
		},
		{
			Name:        RulesSearch,
			Description: "Search the Comprehensive Rules by section number prefix (e.g. 903) or by keyword.",
			InputSchema: tools.Object(map[string]any{
				"section": tools.String("Section number prefix, e.g. 903 or 702.19."),
				"keyword": tools.String("Case-insensitive keyword to look for in rule text."),
			}),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[rulesSearchArgs](args)
				if err != nil {
					return nil, err
				}
				v, err := svc.SearchRules(ctx, strings.TrimSpace(a.Section), strings.TrimSpace(a.Keyword))
				return result(v, err)
			},
		},
		{
			Name:        CardTypesGet,
			Description: "Get detailed information about card types, subtypes and supertypes with example cards.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				v, err := svc.CardTypes(ctx)
				return result(v, err)
			},
		},
		{
			Name:        RulingSearch,
			Description: "Search for official rulings for a specific Magic: The Gathering card.",
			InputSchema: tools.Object(map[string]any{"cardName": cardName}, "cardName"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[cardArgs](args)
				if err != nil {
					return nil, err
				}
				name, err := requireCardName(a)
				if err != nil {
					return nil, err
				}
				v, err := svc.Rulings(ctx, name)
				return result(v, err)
			},
		},
		{
			Name:        CombosSearch,
			Description: "Search for Commander combos involving a specific card using Commander Spellbook.",
			InputSchema: tools.Object(map[string]any{"cardName": cardName}, "cardName"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[cardArgs](args)
				if err != nil {
					return nil, err
				}
				name, err := requireCardName(a)
				if err != nil {
					return nil, err
				}
				v, err := svc.Combos(ctx, name)
				return result(v, err)
			},
		},
		{
			Name:        CommanderRecommend,
			Description: "Get the top 10 recommended cards for a commander from EDHREC, with prices.",
			InputSchema: tools.Object(map[string]any{
				"cardName": cardName,
				"includeContext": map[string]any{
					"type":        "boolean",
					"description": "Also include the Commander format context and bracket information.",
					"default":     true,
				},
			}, "cardName"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[cardArgs](args)
				if err != nil {
					return nil, err
				}
				name, err := requireCardName(a)
				if err != nil {
					return nil, err
				}
				v, err := svc.Recommend(ctx, name, mtg.RecommendOptions{IncludeContext: a.includeContext()})
				return result(v, err)
			},
		},
		{
			Name:        CommanderBrackets,
			Description: "Get information about Commander power level brackets and their criteria.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return svc.Brackets(), nil
			},
		},
		{
			Name:        ExportFormat,
			Description: "Get the proper format for exporting and importing decklists with quantity notation.",
			InputSchema: tools.Object(map[string]any{}),
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return svc.ExportFormat(), nil
			},
		},
		{
			Name:        CommanderDeck,
			Description: "Validate one or two commanders and gather comprehensive data for generating a legal Commander deck at a target bracket.",
			InputSchema: tools.Object(map[string]any{
				"commanders": map[string]any{
					"type":        "array",
					"description": "One commander, or two partnered commanders.",
					"items":       map[string]any{"type": "string"},
					"minItems":    1,
					"maxItems":    mtg.MaxCommanders,
				},
				"bracket": map[string]any{
					"type":        "integer",
					"description": "Target power level bracket.",
					"minimum":     mtg.MinBracket,
					"maximum":     mtg.MaxBracket,
					"default":     mtg.DefaultBracket,
				},
			}, "commanders"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[deckArgs](args)
				if err != nil {
					return nil, err
				}
				bracket := mtg.DefaultBracket
				if a.Bracket != nil {
					bracket = *a.Bracket
				}
				v, err := svc.CommanderDeck(ctx, a.Commanders, bracket)
				return result(v, err)
			},
		},
		{
			Name:        ArchidektFetch,
			Description: "Fetch deck information and the card list from a public Archidekt deck URL.",
			InputSchema: tools.Object(map[string]any{
				"deckUrl": deckURL("https://archidekt.com/decks/17187915/automation_testing"),
			}, "deckUrl"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[deckURLArgs](args)
				if err != nil {
					return nil, err
				}
				v, err := svc.ArchidektDeck(ctx, a.url())
				return result(v, err)
			},
		},
		{
			Name:        MoxfieldFetch,
			Description: "Fetch deck information and the card list from a public Moxfield deck URL. Commanders are identified in the response.",
			InputSchema: tools.Object(map[string]any{
				"deckUrl": deckURL("https://moxfield.com/decks/TdOsPBP3302BdskyLVzU-A"),
			}, "deckUrl"),
			Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				a, err := decode[deckURLArgs](args)
				if err != nil {
					return nil, err
				}
				v, err := svc.MoxfieldDeck(ctx, a.url())
				return result(v, err)
			},
		},
	}
	for i := range ts {
		ts[i].ReadOnly = true
	}
	return ts
}
