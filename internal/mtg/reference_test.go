package mtg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReference(t *testing.T) {
	ref, err := LoadReference()
	require.NoError(t, err)

	require.Len(t, ref.Brackets.Brackets, 5)
	for n := MinBracket; n <= MaxBracket; n++ {
		tier, ok := ref.Brackets.Tier(n)
		require.True(t, ok, "bracket %d", n)
		assert.NotEmpty(t, tier.Name)
		assert.NotEmpty(t, tier.Characteristics)
	}
	three, _ := ref.Brackets.Tier(3)
	assert.Equal(t, "Bracket 3 (Mid-High Power)", three.Name)
	assert.Contains(t, three.TypicalCards, "Fetchlands")

	five, _ := ref.Brackets.Tier(5)
	assert.Contains(t, five.CompetitiveCommanders, "Kinnan, Bonder Prodigy")

	assert.Equal(t, "Standard Decklist Format", ref.ExportFormat["format_name"])
	assert.Equal(t, "Magic: The Gathering", ref.GameContext["game"])
	assert.Contains(t, ref.GameContext["available_tools"], "mtg.moxfield.fetch")
	assert.Contains(t, ref.CommanderFormat, "deck_construction")

	require.Len(t, ref.CardTypes, 7)
	assert.Equal(t, "Land", ref.CardTypes[0].Name)
	assert.NotEmpty(t, ref.CardTypes[0].Timing)
	assert.NotEmpty(t, ref.CardTypes[1].Rules, "creatures describe combat rules")
}

func TestBracketName(t *testing.T) {
	assert.Equal(t, "Bracket 4", BracketName(4))
}

func TestClone_DoesNotShareNestedMaps(t *testing.T) {
	src := Document{"a": map[string]any{"b": []any{"c"}}}
	dst := clone(src)
	dst["a"].(map[string]any)["b"] = "changed"

	assert.Equal(t, []any{"c"}, src["a"].(map[string]any)["b"])
}
