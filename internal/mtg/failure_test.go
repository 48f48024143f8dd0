package mtg

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

func TestFailure_MarshalJSON(t *testing.T) {
	ue := &upstream.Error{
		Kind:    upstream.KindUpstream,
		API:     "scryfall",
		Message: "Bad Gateway",
		Status:  502,
		URL:     "https://api.scryfall.test/cards/named",
		Details: "upstream hiccup",
	}
	f := Fail("Failed to fetch card information for 'Atraxa'", fmt.Errorf("scryfall: named: %w", ue)).
		With("card_name", "Atraxa")

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "Failed to fetch card information for 'Atraxa'", got["error"])
	assert.Equal(t, "upstream_error", got["kind"])
	assert.EqualValues(t, 502, got["status"])
	assert.Equal(t, "upstream hiccup", got["details"])
	assert.Equal(t, "https://api.scryfall.test/cards/named", got["api_url"])
	assert.Equal(t, "Atraxa", got["card_name"])
}

func TestFailure_FieldsCannotOverrideError(t *testing.T) {
	f := Invalid("bad input").With("error", "sneaky")

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error":"bad input"`)
	assert.Contains(t, string(raw), `"kind":"validation_error"`)
}

func TestFail_TransportErrorCarriesDetails(t *testing.T) {
	ue := &upstream.Error{Kind: upstream.KindTransport, API: "edhrec", Message: "request failed", Err: errors.New("connection refused")}
	f := Fail("Failed to fetch EDHREC recommendations", ue)

	assert.Equal(t, upstream.KindTransport, f.Kind)
	assert.Contains(t, f.Details, "connection refused")
	assert.ErrorIs(t, f, ue)
}

func TestAsFailure(t *testing.T) {
	orig := Invalid("Bracket must be between 1 and 5")
	assert.Same(t, orig, AsFailure(fmt.Errorf("wrapped: %w", orig)))

	ue := &upstream.Error{Kind: upstream.KindNotFound, API: "moxfield", Message: "not found", Status: 404}
	f := AsFailure(ue)
	assert.Equal(t, "not found", f.Message)
	assert.Equal(t, 404, f.Status)

	f = AsFailure(errors.New("boom"))
	assert.Equal(t, "internal error", f.Message)
	assert.Equal(t, "boom", f.Details)
}

func TestOutcome_MarshalJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	ok := Capture(&payload{Name: "Sol Ring"}, nil)
	assert.True(t, ok.OK())
	raw, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Sol Ring"}`, string(raw))

	failed := Capture[payload](nil, Invalid("nope"))
	assert.False(t, failed.OK())
	raw, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"nope","kind":"validation_error"}`, string(raw))

	var zero Outcome[payload]
	raw, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"no data"}`, string(raw))
}
