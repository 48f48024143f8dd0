package mtg

import (
	"bytes"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed reference/*.yaml
var referenceFS embed.FS

// Bracket is one tier of the Commander bracket system.
type Bracket struct {
	Name                  string   `yaml:"name" json:"name"`
	PowerLevel            string   `yaml:"power_level" json:"power_level"`
	Description           string   `yaml:"description" json:"description"`
	Characteristics       []string `yaml:"characteristics" json:"characteristics"`
	ExampleStrategies     []string `yaml:"example_strategies" json:"example_strategies"`
	NotableInclusions     []string `yaml:"notable_inclusions" json:"notable_inclusions,omitempty"`
	BannedEffects         []string `yaml:"banned_effects" json:"banned_effects,omitempty"`
	TypicalCards          []string `yaml:"typical_cards" json:"typical_cards"`
	CompetitiveCommanders []string `yaml:"competitive_commanders" json:"competitive_commanders,omitempty"`
}

// KeyIndicator describes a card class that pushes a deck up the brackets.
type KeyIndicator struct {
	Description string   `yaml:"description" json:"description"`
	Examples    []string `yaml:"examples" json:"examples"`
	Impact      string   `yaml:"impact" json:"impact"`
}

// Brackets is the static bracket catalog.
type Brackets struct {
	System        string                  `yaml:"system" json:"system"`
	Description   string                  `yaml:"description" json:"description"`
	Source        string                  `yaml:"source" json:"source"`
	LastUpdated   string                  `yaml:"last_updated" json:"last_updated"`
	TotalBrackets int                     `yaml:"total_brackets" json:"total_brackets"`
	Brackets      map[string]Bracket      `yaml:"brackets" json:"brackets"`
	Guidelines    map[string]string       `yaml:"guidelines" json:"guidelines"`
	KeyIndicators map[string]KeyIndicator `yaml:"key_indicators" json:"key_indicators"`
	ReferenceURL  string                  `yaml:"reference_url" json:"reference_url"`
	Note          string                  `yaml:"note" json:"note"`
}

// BracketName returns the catalog key of tier n, e.g. "Bracket 3".
func BracketName(n int) string { return fmt.Sprintf("Bracket %d", n) }

// Tier returns the catalog entry for tier n.
func (b *Brackets) Tier(n int) (Bracket, bool) {
	t, ok := b.Brackets[BracketName(n)]
	return t, ok
}

// CardType is a main card type with its static description.
type CardType struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Timing      string `yaml:"timing"`
	Rules       string `yaml:"rules"`
}

// Document is free-form reference text served as-is.
type Document = map[string]any

// Reference holds every piece of static reference data.
type Reference struct {
	Brackets        *Brackets
	ExportFormat    Document
	CommanderFormat Document
	GameContext     Document
	CardTypes       []CardType
}

// LoadReference decodes the embedded reference files.
func LoadReference() (*Reference, error) {
	ref := &Reference{Brackets: &Brackets{}}
	files := []struct {
		name string
		dst  any
	}{
		{"brackets.yaml", ref.Brackets},
		{"export_format.yaml", &ref.ExportFormat},
		{"commander_format.yaml", &ref.CommanderFormat},
		{"game_context.yaml", &ref.GameContext},
		{"card_types.yaml", &ref.CardTypes},
	}
	for _, f := range files {
		data, err := referenceFS.ReadFile("reference/" + f.name)
		if err != nil {
			return nil, fmt.Errorf("mtg: read reference %s: %w", f.name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f.dst); err != nil {
			return nil, fmt.Errorf("mtg: decode reference %s: %w", f.name, err)
		}
	}
	if n := len(ref.Brackets.Brackets); n != ref.Brackets.TotalBrackets {
		return nil, fmt.Errorf("mtg: reference brackets.yaml: %d brackets, want %d", n, ref.Brackets.TotalBrackets)
	}
	return ref, nil
}

// clone returns a deep copy of d so callers can embed it in a response
// without sharing the reference maps.
func clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
