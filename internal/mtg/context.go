package mtg

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GameContext returns the base game information and tool directory. The
// rules version is taken from the cached rules dataset when available.
func (s *Service) GameContext(ctx context.Context) (Document, error) {
	lastUpdated := s.src.Rules.LastUpdated()
	doc, err := s.rules.Get(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
	} else {
		lastUpdated = doc.LastUpdated
	}

	out := clone(s.ref.GameContext)
	out["rules_version"] = fmt.Sprintf("Using official Magic: The Gathering Comprehensive Rules (last updated: %s)", lastUpdated)
	return out, nil
}

// CommanderContext returns the Commander format rules together with the live
// banned list and game changer list. A failing list is embedded as an error
// object.
func (s *Service) CommanderContext(ctx context.Context) (Document, error) {
	var (
		banned       Outcome[BannedList]
		gameChangers Outcome[GameChangerList]
	)
	var g errgroup.Group
	g.Go(func() error {
		v, err := s.banned.Get(ctx)
		banned = Capture(v, err)
		return nil
	})
	g.Go(func() error {
		v, err := s.gameChangers.Get(ctx)
		gameChangers = Capture(v, err)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := clone(s.ref.CommanderFormat)
	out["banned_list"] = banned
	out["game_changers"] = gameChangers
	return out, nil
}

// Brackets returns the static bracket catalog.
func (s *Service) Brackets() *Brackets { return s.ref.Brackets }

// ExportFormat returns the decklist export format reference.
func (s *Service) ExportFormat() Document { return clone(s.ref.ExportFormat) }
