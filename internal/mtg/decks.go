package mtg

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/archidekt"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
	"github.com/MrWong99/mtgctx/internal/upstream/moxfield"
)

// DeckImport is a normalized deck plus a readable commander line.
type DeckImport struct {
	*deck.Deck
	CommanderSummary string `json:"commander_summary,omitempty"`
}

// deckSite describes one deck hosting site for error reporting.
type deckSite struct {
	name           string
	src            DeckSource
	deckID         func(string) (string, bool)
	expectedFormat string
	example        string
}

func (s *Service) archidektSite() deckSite {
	return deckSite{
		name:           archidekt.Source,
		src:            s.src.Archidekt,
		deckID:         archidekt.DeckID,
		expectedFormat: archidekt.ExpectedFormat,
		example:        archidekt.ExampleURL,
	}
}

func (s *Service) moxfieldSite() deckSite {
	return deckSite{
		name:           moxfield.Source,
		src:            s.src.Moxfield,
		deckID:         moxfield.DeckID,
		expectedFormat: moxfield.ExpectedFormat,
		example:        moxfield.ExampleURL,
	}
}

// ArchidektDeck imports a public Archidekt deck.
func (s *Service) ArchidektDeck(ctx context.Context, deckURL string) (*DeckImport, error) {
	return s.importDeck(ctx, s.archidektSite(), deckURL)
}

// MoxfieldDeck imports a public Moxfield deck.
func (s *Service) MoxfieldDeck(ctx context.Context, deckURL string) (*DeckImport, error) {
	return s.importDeck(ctx, s.moxfieldSite(), deckURL)
}

func (s *Service) importDeck(ctx context.Context, site deckSite, deckURL string) (*DeckImport, error) {
	d, err := site.src.Fetch(ctx, deckURL)
	if err != nil {
		return nil, site.failure(deckURL, err)
	}
	out := &DeckImport{Deck: d}
	if names := d.CommanderNames(); len(names) > 0 {
		out.CommanderSummary = fmt.Sprintf("This is a %s deck with commander(s): %s", d.Info.Format, strings.Join(names, ", "))
	}
	return out, nil
}

func (site deckSite) failure(deckURL string, err error) *Failure {
	id, _ := site.deckID(deckURL)
	var f *Failure
	switch upstream.KindOf(err) {
	case upstream.KindValidation:
		return Fail(fmt.Sprintf("Invalid %s URL. Please provide a URL from %s in the correct format.", site.name, strings.ToLower(site.name)+".com"), err).
			With("expected_format", site.expectedFormat).
			With("example", site.example).
			With("provided_url", deckURL)
	case upstream.KindNotFound:
		f = Fail("Deck not found", err).With("suggestion", "Make sure the deck is public and the URL is correct")
	case upstream.KindUpstream:
		f = Fail(fmt.Sprintf("Failed to fetch deck from %s API", site.name), err)
	default:
		f = Fail("Network error while fetching deck", err)
	}
	return f.With("deck_id", id)
}
