package mtg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/archidekt"
	"github.com/MrWong99/mtgctx/internal/upstream/deck"
	"github.com/MrWong99/mtgctx/internal/upstream/moxfield"
)

// deckService wires real deck clients against srv.
func deckService(t *testing.T, srv *httptest.Server) *Service {
	t.Helper()
	f := newFixture()
	svc, err := New(Sources{
		Cards:           f.cards,
		Recommendations: f.edhrec,
		Combos:          f.combos,
		Rules:           f.rules,
		Archidekt:       archidekt.New(upstream.New(archidekt.API), archidekt.WithBaseURL(srv.URL)),
		Moxfield:        moxfield.New(upstream.New(moxfield.API), moxfield.WithBaseURL(srv.URL)),
	})
	require.NoError(t, err)
	return svc
}

func TestDeckImport_InvalidURLMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()
	svc := deckService(t, srv)

	_, err := svc.ArchidektDeck(context.Background(), "https://moxfield.com/decks/abc")
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Invalid Archidekt URL. Please provide a URL from archidekt.com in the correct format.", fail.Message)
	assert.Equal(t, archidekt.ExpectedFormat, fail.Fields["expected_format"])
	assert.Equal(t, archidekt.ExampleURL, fail.Fields["example"])
	assert.Equal(t, "https://moxfield.com/decks/abc", fail.Fields["provided_url"])
	assert.NotContains(t, fail.Fields, "deck_id")

	_, err = svc.MoxfieldDeck(context.Background(), "https://archidekt.com/decks/1/x")
	require.Error(t, err)
	fail = AsFailure(err)
	assert.Equal(t, "Invalid Moxfield URL. Please provide a URL from moxfield.com in the correct format.", fail.Message)
	assert.Equal(t, moxfield.ExpectedFormat, fail.Fields["expected_format"])

	assert.Zero(t, calls.Load())
}

func TestDeckImport_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	svc := deckService(t, srv)

	_, err := svc.MoxfieldDeck(context.Background(), "https://moxfield.com/decks/gone")
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Deck not found", fail.Message)
	assert.Equal(t, "gone", fail.Fields["deck_id"])
	assert.Equal(t, "Make sure the deck is public and the URL is correct", fail.Fields["suggestion"])
	assert.Equal(t, upstream.KindNotFound, fail.Kind)
	assert.Equal(t, http.StatusNotFound, fail.Status)
}

func TestDeckImport_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	svc := deckService(t, srv)

	_, err := svc.ArchidektDeck(context.Background(), "https://archidekt.com/decks/42/x")
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Failed to fetch deck from Archidekt API", fail.Message)
	assert.Equal(t, "42", fail.Fields["deck_id"])
	assert.Equal(t, http.StatusServiceUnavailable, fail.Status)
}

func TestDeckImport_TransportError(t *testing.T) {
	f := newFixture()
	f.archi.err = &upstream.Error{Kind: upstream.KindTransport, API: archidekt.API, Message: "connection refused"}
	svc := f.service(t)

	_, err := svc.ArchidektDeck(context.Background(), "https://archidekt.com/decks/7")
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Network error while fetching deck", fail.Message)
	assert.Equal(t, "7", fail.Fields["deck_id"])
}

func TestDeckImport_CommanderSummary(t *testing.T) {
	f := newFixture()
	f.mox.deck = &deck.Deck{
		Source: moxfield.Source,
		Info:   deck.Info{Format: "commander"},
		Commanders: []deck.Card{
			{Name: "Tymna the Weaver", Board: deck.Commanders, Quantity: 1},
			{Name: "Kraum, Ludevic's Opus", Board: deck.Commanders, Quantity: 1},
		},
	}
	f.archi.deck = &deck.Deck{Source: archidekt.Source, Commanders: []deck.Card{}}
	svc := f.service(t)

	got, err := svc.MoxfieldDeck(context.Background(), "https://moxfield.com/decks/abc")
	require.NoError(t, err)
	assert.Equal(t, "This is a commander deck with commander(s): Tymna the Weaver, Kraum, Ludevic's Opus", got.CommanderSummary)
	assert.Equal(t, int32(1), f.mox.calls.Load())

	got, err = svc.ArchidektDeck(context.Background(), "https://archidekt.com/decks/1")
	require.NoError(t, err)
	assert.Empty(t, got.CommanderSummary)
}
