package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	CardName string `json:"cardName"`
	Bracket  *int   `json:"bracket"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want sampleArgs
	}{
		{"empty", "", sampleArgs{}},
		{"null", "null", sampleArgs{}},
		{"whitespace", "  \n", sampleArgs{}},
		{"object", `{"cardName": "Sol Ring"}`, sampleArgs{CardName: "Sol Ring"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[sampleArgs](json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Decode[sampleArgs](json.RawMessage(`{"bracket": 3}`))
	require.NoError(t, err)
	require.NotNil(t, got.Bracket)
	assert.Equal(t, 3, *got.Bracket)

	_, err = Decode[sampleArgs](json.RawMessage(`{"cardName": 7}`))
	assert.ErrorContains(t, err, "tools: decode arguments")
}

func TestObject(t *testing.T) {
	s := Object(map[string]any{"cardName": String("Card name")}, "cardName")
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, []string{"cardName"}, s["required"])

	empty := Object(map[string]any{})
	assert.NotContains(t, empty, "required")
}
