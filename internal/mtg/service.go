// Package mtg composes upstream and cached data into the answers served by
// the mtgctx tools.
//
// A [Service] owns the three process-wide datasets (comprehensive rules,
// Commander banned list, game changers) and the static reference data. Each
// method corresponds to one tool and returns either a result struct or an
// error that [AsFailure] turns into a JSON error payload. Enrichment lookups
// such as prices never fail the enclosing call; load-bearing lookups such as
// resolving the queried card do.
package mtg

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/mtgctx/internal/cache"
	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
	"github.com/MrWong99/mtgctx/internal/upstream/edhrec"
	"github.com/MrWong99/mtgctx/internal/upstream/rulestext"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
	"github.com/MrWong99/mtgctx/internal/upstream/spellbook"
)

// CardSource resolves cards, rulings and catalogs.
type CardSource interface {
	Named(ctx context.Context, name string, mode scryfall.Mode) (*scryfall.Card, error)
	Rulings(ctx context.Context, id string) ([]scryfall.Ruling, error)
	SearchAll(ctx context.Context, query, order string) ([]scryfall.Card, error)
	Search(ctx context.Context, query, order string, limit int) ([]scryfall.Card, error)
	Catalog(ctx context.Context, name string) ([]string, error)
}

// RecommendationSource serves EDHREC pages.
type RecommendationSource interface {
	Page(ctx context.Context, kind edhrec.Kind, slug string) (*edhrec.Page, error)
	GameChangers(ctx context.Context) (*edhrec.Page, error)
	GameChangersURL() string
}

// ComboSource searches combo variants for a card.
type ComboSource interface {
	Search(ctx context.Context, cardName string) (*spellbook.Result, error)
}

// RulesSource downloads the comprehensive rules.
type RulesSource interface {
	Fetch(ctx context.Context) (*rulestext.Document, error)
	LastUpdated() string
}

// DeckSource imports a deck from a public deck URL.
type DeckSource interface {
	Fetch(ctx context.Context, deckURL string) (*deck.Deck, error)
}

// Sources bundles the upstreams a [Service] reads from. Every field is
// required.
type Sources struct {
	Cards           CardSource
	Recommendations RecommendationSource
	Combos          ComboSource
	Rules           RulesSource
	Archidekt       DeckSource
	Moxfield        DeckSource
}

func (s Sources) validate() error {
	var errs []error
	if s.Cards == nil {
		errs = append(errs, errors.New("cards source is nil"))
	}
	if s.Recommendations == nil {
		errs = append(errs, errors.New("recommendations source is nil"))
	}
	if s.Combos == nil {
		errs = append(errs, errors.New("combos source is nil"))
	}
	if s.Rules == nil {
		errs = append(errs, errors.New("rules source is nil"))
	}
	if s.Archidekt == nil {
		errs = append(errs, errors.New("archidekt source is nil"))
	}
	if s.Moxfield == nil {
		errs = append(errs, errors.New("moxfield source is nil"))
	}
	return errors.Join(errs...)
}

// Dataset names, also used as metric attributes.
const (
	DatasetRules        = "comprehensive_rules"
	DatasetBannedList   = "banned_list"
	DatasetGameChangers = "game_changers"
)

// Option is a functional option for [New].
type Option func(*Service)

// WithMetrics records dataset cache metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReference replaces the embedded reference data. Intended for tests.
func WithReference(r *Reference) Option {
	return func(s *Service) { s.ref = r }
}

// Service answers the mtgctx tools. All methods are safe for concurrent use.
type Service struct {
	src     Sources
	ref     *Reference
	metrics *observe.Metrics

	rules        *cache.Dataset[*rulestext.Document]
	banned       *cache.Dataset[*BannedList]
	gameChangers *cache.Dataset[*GameChangerList]
}

// New creates a Service. It fails when a source is missing or the embedded
// reference data cannot be decoded.
func New(src Sources, opts ...Option) (*Service, error) {
	if err := src.validate(); err != nil {
		return nil, errors.Join(errors.New("mtg: invalid sources"), err)
	}
	s := &Service{src: src}
	for _, o := range opts {
		o(s)
	}
	if s.ref == nil {
		ref, err := LoadReference()
		if err != nil {
			return nil, err
		}
		s.ref = ref
	}

	var copts []cache.Option
	if s.metrics != nil {
		copts = append(copts, cache.WithMetrics(s.metrics))
	}
	s.rules = cache.New(DatasetRules, src.Rules.Fetch, copts...)
	s.banned = cache.New(DatasetBannedList, s.fetchBannedList, copts...)
	s.gameChangers = cache.New(DatasetGameChangers, s.fetchGameChangers, copts...)
	return s, nil
}

// Reference returns the static reference data.
func (s *Service) Reference() *Reference { return s.ref }

// DatasetStatus describes one cached dataset.
type DatasetStatus struct {
	Name      string
	Populated bool
	Err       error
}

func (d DatasetStatus) String() string {
	switch {
	case d.Err != nil:
		return fmt.Sprintf("%s: failed: %v", d.Name, d.Err)
	case !d.Populated:
		return d.Name + ": empty"
	default:
		return d.Name + ": ok"
	}
}

// Datasets reports the state of every cached dataset.
func (s *Service) Datasets() []DatasetStatus {
	return []DatasetStatus{
		{Name: s.rules.Name(), Populated: s.rules.Populated(), Err: s.rules.Err()},
		{Name: s.banned.Name(), Populated: s.banned.Populated(), Err: s.banned.Err()},
		{Name: s.gameChangers.Name(), Populated: s.gameChangers.Populated(), Err: s.gameChangers.Err()},
	}
}

// Warm populates every dataset concurrently and returns the joined failures.
func (s *Service) Warm(ctx context.Context) error {
	errc := make(chan error, 3)
	go func() { _, err := s.rules.Get(ctx); errc <- err }()
	go func() { _, err := s.banned.Get(ctx); errc <- err }()
	go func() { _, err := s.gameChangers.Get(ctx); errc <- err }()
	var errs []error
	for range 3 {
		if err := <-errc; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
