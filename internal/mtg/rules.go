package mtg

import (
	"context"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/MrWong99/mtgctx/internal/upstream/rulestext"
)

// chapters indexes the top-level chapters of the comprehensive rules.
var chapters = map[string]string{
	"Game Concepts":                  "1. Game Concepts",
	"Parts of the Game":              "2. Parts of the Game",
	"Turn Structure":                 "3. Turn Structure",
	"Spells, Abilities, and Effects": "4. Spells, Abilities, and Effects",
	"Additional Rules":               "5. Additional Rules",
	"Multiplayer Rules":              "8. Multiplayer Rules",
	"Casual Variants":                "9. Casual Variants",
}

// RulesInfo is the overview of the comprehensive rules.
type RulesInfo struct {
	LastUpdated    string            `json:"last_updated"`
	Sections       map[string]string `json:"sections"`
	AvailableRules []string          `json:"available_rules"`
	HowToUse       string            `json:"how_to_use"`
}

// rulesDocument returns the cached rules, turning a cached failure into the
// rules-unavailable Failure.
func (s *Service) rulesDocument(ctx context.Context) (*rulestext.Document, error) {
	doc, err := s.rules.Get(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, Fail("Rules are currently unavailable", err).With("last_updated", s.src.Rules.LastUpdated())
	}
	return doc, nil
}

// RulesInfo returns the chapter index and every section key in document
// order.
func (s *Service) RulesInfo(ctx context.Context) (*RulesInfo, error) {
	doc, err := s.rulesDocument(ctx)
	if err != nil {
		return nil, err
	}
	return &RulesInfo{
		LastUpdated:    doc.LastUpdated,
		Sections:       chapters,
		AvailableRules: nonNil(doc.Keys()),
		HowToUse:       "Query specific rules using mtg.rules.search with section numbers or keywords",
	}, nil
}

// RulesSearch is the result of [Service.SearchRules].
type RulesSearch struct {
	Results     *rulestext.Sections `json:"results"`
	LastUpdated string              `json:"last_updated"`
	Matches     int                 `json:"matches"`
}

// SearchRules returns the sections whose key starts with section or whose
// text contains keyword (case-insensitive), in document order. Empty filters
// match nothing.
func (s *Service) SearchRules(ctx context.Context, section, keyword string) (*RulesSearch, error) {
	doc, err := s.rulesDocument(ctx)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(keyword)

	results := orderedmap.New[string, string]()
	for pair := doc.Sections.Oldest(); pair != nil; pair = pair.Next() {
		switch {
		case section != "" && strings.HasPrefix(pair.Key, section):
		case keyword != "" && strings.Contains(strings.ToLower(pair.Value), keyword):
		default:
			continue
		}
		results.Set(pair.Key, pair.Value)
	}
	return &RulesSearch{
		Results:     results,
		LastUpdated: doc.LastUpdated,
		Matches:     results.Len(),
	}, nil
}
