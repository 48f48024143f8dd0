package mtg

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/edhrec"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
)

func views(prefix string, n, decks int) []edhrec.CardView {
	out := make([]edhrec.CardView, n)
	for i := range out {
		out[i] = edhrec.CardView{
			Name:           fmt.Sprintf("%s %d", prefix, i),
			SanitizedWO:    fmt.Sprintf("%s-%d", prefix, i),
			NumDecks:       decks + i,
			PotentialDecks: 1000,
		}
	}
	return out
}

func TestCollectRecommendations(t *testing.T) {
	page := &edhrec.Page{CardLists: []edhrec.CardList{
		{Header: "New Cards", CardViews: views("new", 3, 900)},
		{Header: "High Synergy Cards", CardViews: views("syn", 4, 100)},
		{Header: "Top Cards", CardViews: views("top", 12, 500)},
		{Header: "Creatures", CardViews: views("creature", 5, 700)},
	}}

	got := collectRecommendations(page)

	require.Len(t, got, 14, "4 synergy + 10 top, then stop")
	assert.Equal(t, "syn 0", got[0].Name)
	assert.Equal(t, "High Synergy Cards", got[0].Category)
	assert.Equal(t, "syn-0", got[0].SanitizedName)
	assert.Equal(t, "top 9", got[13].Name)
	for _, r := range got {
		assert.NotContains(t, r.Name, "new")
		assert.NotContains(t, r.Name, "creature")
	}
	require.NotNil(t, got[0].InclusionPercentage)
	assert.InDelta(t, 10.0, *got[0].InclusionPercentage, 0.001)
}

func TestCollectRecommendations_NoPotentialDecks(t *testing.T) {
	page := &edhrec.Page{CardLists: []edhrec.CardList{
		{Header: "Top Cards", CardViews: []edhrec.CardView{{Name: "Sol Ring", NumDecks: 5}}},
	}}
	got := collectRecommendations(page)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].InclusionPercentage)
}

func recommendFixture() *fixture {
	f := newFixture()
	f.cards.fuzzy["atraxa"] = "Atraxa, Praetors' Voice"
	f.addCard(&scryfall.Card{
		ID:            "atraxa-id",
		Name:          "Atraxa, Praetors' Voice",
		TypeLine:      "Legendary Creature — Phyrexian Angel Horror",
		ColorIdentity: []string{"W", "U", "B", "G"},
		OracleText:    "Flying, vigilance, deathtouch, lifelink\nAt the beginning of your end step, proliferate.",
	})
	f.addCard(&scryfall.Card{
		Name:     "top 1",
		ManaCost: "{1}",
		CMC:      1,
		TypeLine: "Artifact",
		Prices:   scryfall.Prices{USD: strPtr("1.50"), Tix: strPtr("0.02")},
	})
	f.edhrec.pages["commanders/atraxa-praetors-voice"] = &edhrec.Page{
		NumDecks: 42000,
		CardLists: []edhrec.CardList{
			{Header: "Top Cards", CardViews: views("top", 12, 100)},
		},
	}
	return f
}

func TestRecommend(t *testing.T) {
	f := recommendFixture()
	svc := f.service(t)

	res, err := svc.Recommend(context.Background(), "atraxa", RecommendOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Atraxa, Praetors' Voice", res.CardName)
	assert.True(t, res.IsLegendaryCreature)
	assert.Equal(t, 42000, res.TotalDecks)
	assert.Equal(t, 10, res.TotalRecommendations)
	assert.Equal(t, "EDHREC", res.Source)
	assert.Equal(t, "https://edhrec.com/commanders/atraxa-praetors-voice", res.EDHRECURL)
	assert.Nil(t, res.CommanderContext)
	assert.Nil(t, res.CommanderBrackets)

	require.Len(t, res.TopCards, 10)
	assert.Equal(t, "top 9", res.TopCards[0].Name, "sorted by deck count descending")
	assert.Equal(t, "top 0", res.TopCards[9].Name)

	var priced *Recommendation
	for i := range res.TopCards {
		if res.TopCards[i].Name == "top 1" {
			priced = &res.TopCards[i]
		} else {
			assert.Nil(t, res.TopCards[i].Prices, res.TopCards[i].Name)
			assert.Empty(t, res.TopCards[i].ManaCost)
		}
	}
	require.NotNil(t, priced)
	require.NotNil(t, priced.Prices)
	assert.Equal(t, "1.50", *priced.Prices.USD)
	raw, err := json.Marshal(priced.Prices)
	require.NoError(t, err)
	assert.JSONEq(t, `{"usd":"1.50","usd_foil":null,"eur":null}`, string(raw))
	assert.Equal(t, "{1}", priced.ManaCost)

	// 1 fuzzy resolution + 10 price lookups.
	assert.Equal(t, int32(11), f.cards.named.Load())
}

func TestRecommend_FallsBackToCardPage(t *testing.T) {
	f := newFixture()
	f.addCard(&scryfall.Card{Name: "Sol Ring", TypeLine: "Artifact"})
	f.edhrec.pages["cards/sol-ring"] = &edhrec.Page{NumDecks: 9}
	svc := f.service(t)

	res, err := svc.Recommend(context.Background(), "Sol Ring", RecommendOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"commanders/sol-ring", "cards/sol-ring"}, f.edhrec.requested)
	assert.False(t, res.IsLegendaryCreature)
	assert.Equal(t, "https://edhrec.com/cards/sol-ring", res.EDHRECURL)
	assert.Equal(t, []Recommendation{}, res.TopCards)
}

func TestRecommend_NoEDHRECData(t *testing.T) {
	f := newFixture()
	f.addCard(&scryfall.Card{Name: "Obscure Card", TypeLine: "Legendary Creature — Elf"})
	svc := f.service(t)

	_, err := svc.Recommend(context.Background(), "Obscure Card", RecommendOptions{})
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "No EDHREC data found for 'Obscure Card'", fail.Message)
	assert.Equal(t, true, fail.Fields["is_legendary"])
	assert.Equal(t, true, fail.Fields["is_creature"])
	assert.Equal(t, upstream.KindNotFound, fail.Kind)
}

func TestRecommend_CardNotFound(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	_, err := svc.Recommend(context.Background(), "Nonexistent", RecommendOptions{})
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Card 'Nonexistent' not found", fail.Message)
	assert.Equal(t, "Nonexistent", fail.Fields["card_name"])
	assert.NotEmpty(t, fail.Fields["suggestion"])
	assert.Empty(t, f.edhrec.requested, "no EDHREC call for an unknown card")
}

func TestRecommend_UpstreamFailure(t *testing.T) {
	f := newFixture()
	f.cards.namedErr = unavailable(scryfall.API)
	svc := f.service(t)

	_, err := svc.Recommend(context.Background(), "Atraxa", RecommendOptions{})
	require.Error(t, err)
	fail := AsFailure(err)
	assert.Equal(t, "Failed to fetch card information for 'Atraxa'", fail.Message)
	assert.Equal(t, 503, fail.Status)
}

func TestRecommend_IncludeContext(t *testing.T) {
	f := recommendFixture()
	f.cards.banned = []scryfall.Card{{Name: "Primeval Titan"}}
	svc := f.service(t)

	res, err := svc.Recommend(context.Background(), "atraxa", RecommendOptions{IncludeContext: true})
	require.NoError(t, err)

	require.NotNil(t, res.CommanderContext)
	require.NotNil(t, res.CommanderBrackets)
	assert.Equal(t, 5, res.CommanderBrackets.TotalBrackets)
	assert.NotEmpty(t, res.Note)

	banned, ok := res.CommanderContext["banned_list"].(Outcome[BannedList])
	require.True(t, ok)
	require.True(t, banned.OK())
	assert.Equal(t, []string{"Primeval Titan"}, banned.Value.BannedCards)

	gc, ok := res.CommanderContext["game_changers"].(Outcome[GameChangerList])
	require.True(t, ok)
	assert.False(t, gc.OK(), "game changers unavailable in this fixture")
	assert.Equal(t, "Failed to fetch game changers", gc.Failure.Message)
}
