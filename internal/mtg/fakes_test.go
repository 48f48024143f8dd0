package mtg

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
	"github.com/MrWong99/mtgctx/internal/upstream/edhrec"
	"github.com/MrWong99/mtgctx/internal/upstream/rulestext"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
	"github.com/MrWong99/mtgctx/internal/upstream/spellbook"
)

func notFound(api string) error {
	return &upstream.Error{Kind: upstream.KindNotFound, API: api, Message: "not found", Status: 404}
}

func unavailable(api string) error {
	return &upstream.Error{Kind: upstream.KindUpstream, API: api, Message: "Service Unavailable", Status: 503}
}

// fakeCards serves cards by exact name. Fuzzy lookups also match by the
// fuzzy alias table.
type fakeCards struct {
	cards    map[string]*scryfall.Card
	fuzzy    map[string]string
	rulings  map[string][]scryfall.Ruling
	banned   []scryfall.Card
	catalogs map[string][]string
	examples map[string][]scryfall.Card
	namedErr error

	named    atomic.Int32
	searches atomic.Int32
}

func (f *fakeCards) Named(_ context.Context, name string, mode scryfall.Mode) (*scryfall.Card, error) {
	f.named.Add(1)
	if f.namedErr != nil {
		return nil, f.namedErr
	}
	if mode == scryfall.Fuzzy {
		if alias, ok := f.fuzzy[name]; ok {
			name = alias
		}
	}
	if c, ok := f.cards[name]; ok {
		return c, nil
	}
	return nil, notFound(scryfall.API)
}

func (f *fakeCards) Rulings(_ context.Context, id string) ([]scryfall.Ruling, error) {
	r, ok := f.rulings[id]
	if !ok {
		return nil, notFound(scryfall.API)
	}
	return r, nil
}

func (f *fakeCards) SearchAll(_ context.Context, query, _ string) ([]scryfall.Card, error) {
	f.searches.Add(1)
	if query != bannedQuery {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	if f.banned == nil {
		return nil, unavailable(scryfall.API)
	}
	return f.banned, nil
}

func (f *fakeCards) Search(_ context.Context, query, _ string, limit int) ([]scryfall.Card, error) {
	cards, ok := f.examples[query]
	if !ok {
		return nil, notFound(scryfall.API)
	}
	if len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

func (f *fakeCards) Catalog(_ context.Context, name string) ([]string, error) {
	c, ok := f.catalogs[name]
	if !ok {
		return nil, unavailable(scryfall.API)
	}
	return c, nil
}

// fakeEDHREC serves pages keyed by "kind/slug".
type fakeEDHREC struct {
	pages        map[string]*edhrec.Page
	gameChangers *edhrec.Page

	mu        sync.Mutex
	requested []string
}

func (f *fakeEDHREC) Page(_ context.Context, kind edhrec.Kind, slug string) (*edhrec.Page, error) {
	key := string(kind) + "/" + slug
	f.mu.Lock()
	f.requested = append(f.requested, key)
	f.mu.Unlock()
	if p, ok := f.pages[key]; ok {
		return p, nil
	}
	return nil, notFound(edhrec.API)
}

func (f *fakeEDHREC) GameChangers(context.Context) (*edhrec.Page, error) {
	if f.gameChangers == nil {
		return nil, unavailable(edhrec.API)
	}
	return f.gameChangers, nil
}

func (f *fakeEDHREC) GameChangersURL() string {
	return "https://json.edhrec.test/pages/top/game-changers.json"
}

type fakeCombos struct {
	results map[string]*spellbook.Result
}

func (f *fakeCombos) Search(_ context.Context, card string) (*spellbook.Result, error) {
	if r, ok := f.results[card]; ok {
		return r, nil
	}
	return nil, unavailable(spellbook.API)
}

type fakeRules struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeRules) Fetch(context.Context) (*rulestext.Document, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &rulestext.Document{LastUpdated: f.LastUpdated(), Sections: rulestext.ParseSections(f.text)}, nil
}

func (f *fakeRules) LastUpdated() string { return "2025-09-19" }

type fakeDecks struct {
	deck  *deck.Deck
	err   error
	calls atomic.Int32
}

func (f *fakeDecks) Fetch(context.Context, string) (*deck.Deck, error) {
	f.calls.Add(1)
	return f.deck, f.err
}

const sampleRules = `Magic: The Gathering Comprehensive Rules

1. Game Concepts
100. General
100.1. These Magic rules apply to any Magic game with two or more players.
2. Parts of the Game
200. General
903. Commander
903.3. Each deck has a legendary card designated as its commander.`

// fixture bundles the fakes behind a Service.
type fixture struct {
	cards  *fakeCards
	edhrec *fakeEDHREC
	combos *fakeCombos
	rules  *fakeRules
	archi  *fakeDecks
	mox    *fakeDecks
}

func newFixture() *fixture {
	return &fixture{
		cards: &fakeCards{
			cards:    map[string]*scryfall.Card{},
			fuzzy:    map[string]string{},
			rulings:  map[string][]scryfall.Ruling{},
			catalogs: map[string][]string{},
			examples: map[string][]scryfall.Card{},
		},
		edhrec: &fakeEDHREC{pages: map[string]*edhrec.Page{}},
		combos: &fakeCombos{results: map[string]*spellbook.Result{}},
		rules:  &fakeRules{text: sampleRules},
		archi:  &fakeDecks{},
		mox:    &fakeDecks{},
	}
}

func (f *fixture) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(Sources{
		Cards:           f.cards,
		Recommendations: f.edhrec,
		Combos:          f.combos,
		Rules:           f.rules,
		Archidekt:       f.archi,
		Moxfield:        f.mox,
	}, opts...)
	require.NoError(t, err)
	return svc
}

func (f *fixture) addCard(c *scryfall.Card) {
	f.cards.cards[c.Name] = c
}

func strPtr(s string) *string { return &s }
