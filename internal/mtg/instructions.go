package mtg

import (
	"fmt"
	"strings"
)

// deckSize is the exact size of a Commander deck including commanders.
const deckSize = 100

// Instructions tells the consuming model how to turn a [CommanderDeck] into a
// decklist.
type Instructions struct {
	Critical                 string            `json:"CRITICAL_INSTRUCTIONS"`
	TotalCards               int               `json:"total_cards"`
	CommanderSlots           int               `json:"commander_slots"`
	RemainingSlots           int               `json:"remaining_slots"`
	TargetBracket            int               `json:"target_bracket"`
	TargetBracketName        string            `json:"target_bracket_name"`
	BracketDescription       string            `json:"bracket_description"`
	BracketRequirement       string            `json:"BRACKET_REQUIREMENT"`
	ColorIdentityRestriction string            `json:"color_identity_restriction"`
	SingletonRule            string            `json:"singleton_rule"`
	BasicLandsAllowed        []string          `json:"basic_lands_allowed"`
	RecommendedComposition   map[string]string `json:"recommended_composition"`
	BracketGuidelines        BracketGuidelines `json:"bracket_guidelines"`
	DataSources              map[string]string `json:"data_sources"`
	DeckBuildingSteps        []string          `json:"deck_building_steps"`
	ValidationChecklist      []string          `json:"validation_checklist"`
	Output                   OutputRules       `json:"OUTPUT_INSTRUCTIONS"`
}

// BracketGuidelines restates the target tier for the deck builder.
type BracketGuidelines struct {
	PowerLevel        string            `json:"power_level"`
	Description       string            `json:"description"`
	Characteristics   []string          `json:"characteristics"`
	TypicalCards      []string          `json:"typical_cards"`
	GameChangersLimit map[string]string `json:"game_changers_limit"`
	YourBracket       string            `json:"YOUR_BRACKET"`
}

// OutputRules describes the expected decklist output.
type OutputRules struct {
	Format       string   `json:"format"`
	Critical     string   `json:"CRITICAL"`
	ExampleStart []string `json:"example_start"`
	GenerateNow  string   `json:"GENERATE_NOW"`
}

func buildInstructions(d *CommanderDeck) *Instructions {
	b := d.TargetBracket
	tier := d.BracketInfo.TargetBracketDetails
	identity := "[" + strings.Join(d.ColorIdentity, ", ") + "]"
	names := make([]string, len(d.Commanders))
	for i, c := range d.Commanders {
		names[i] = c.Name
	}

	return &Instructions{
		Critical:                 "YOU MUST NOW GENERATE A COMPLETE 100-CARD COMMANDER DECKLIST based on the data provided below. Do not just return this data - USE IT to create an actual decklist.",
		TotalCards:               deckSize,
		CommanderSlots:           len(d.Commanders),
		RemainingSlots:           deckSize - len(d.Commanders),
		TargetBracket:            b,
		TargetBracketName:        BracketName(b),
		BracketDescription:       tier.Description,
		BracketRequirement:       fmt.Sprintf("The deck MUST be built to Bracket %d specifications. Review the bracket_guidelines below carefully.", b),
		ColorIdentityRestriction: fmt.Sprintf("All cards must be within the color identity: %s (or colorless). Lands must not generate mana that does not exist within the identified color identity.", identity),
		SingletonRule:            "Exactly 1 copy of each card except basic lands",
		BasicLandsAllowed:        []string{"Plains", "Island", "Swamp", "Mountain", "Forest", "Snow-Covered variants", "Wastes"},
		RecommendedComposition: map[string]string{
			"lands":               "35-40 cards (including basic lands)",
			"ramp":                "10-12 cards (mana rocks, land ramp)",
			"card_draw":           "10-12 cards",
			"removal":             "8-10 cards (single target and board wipes)",
			"threats_and_synergy": "Remaining slots for win conditions and synergy pieces",
		},
		BracketGuidelines: BracketGuidelines{
			PowerLevel:      tier.PowerLevel,
			Description:     tier.Description,
			Characteristics: nonNil(tier.Characteristics),
			TypicalCards:    nonNil(tier.TypicalCards),
			GameChangersLimit: map[string]string{
				"bracket_1_2": "Generally avoid game changers",
				"bracket_3":   "Generally run up to 3 game changers",
				"bracket_4_5": "Unrestricted on game changers",
			},
			YourBracket: fmt.Sprintf("You are building a Bracket %d deck - follow the guidelines for this bracket specifically", b),
		},
		DataSources: map[string]string{
			"edhrec_recommendations": "Use the top recommended cards from EDHREC for each commander (found in deck_building_data.commanders[].recommendations)",
			"combos":                 fmt.Sprintf("Consider including combo pieces if appropriate for Bracket %d (found in deck_building_data.commanders[].combos)", b),
			"color_identity":         "Filter all card selections by the combined color identity: " + identity,
			"power_level":            fmt.Sprintf("Build to Bracket %d specifications - see bracket_guidelines for details", b),
			"game_changers":          "Check the game changers list in format_rules.commander_context to manage power level appropriately",
			"banned_cards":           "Avoid all cards in format_rules.commander_context.banned_list",
		},
		DeckBuildingSteps: []string{
			"1. Start with the commander(s): " + strings.Join(names, ", "),
			fmt.Sprintf("2. Review Bracket %d guidelines in bracket_guidelines section", b),
			"3. Add essential mana base (lands appropriate to color identity)",
			fmt.Sprintf("4. Add mana ramp appropriate for Bracket %d (use typical_cards from bracket_guidelines as reference)", b),
			"5. Add card draw engines",
			"6. Add removal and interaction",
			fmt.Sprintf("7. Add win conditions and synergy pieces from EDHREC recommendations (matching Bracket %d power level)", b),
			"8. If building Bracket 3+, consider adding game changers (limit based on bracket)",
			"9. Ensure total is exactly 100 cards",
			"10. Format output using the export_format specification (NO COMMENTS, NO HEADERS, JUST CARD LINES)",
		},
		ValidationChecklist: []string{
			"Total cards = 100",
			"All cards match color identity: " + identity,
			"Only 1 copy of non-basic lands",
			"Basic lands can have multiple copies",
			"All cards are legal in Commander format (not banned)",
			fmt.Sprintf("Deck matches Bracket %d power level expectations", b),
			"Output format is clean (no comments, no headers, just quantity x card name per line)",
		},
		Output: OutputRules{
			Format:       "Use the format specified in export_format",
			Critical:     "DO NOT include comments, section headers, or blank lines",
			ExampleStart: []string{"1x " + names[0], "1x Sol Ring", "1x Arcane Signet"},
			GenerateNow:  "After reviewing all the provided data, generate the complete 100-card decklist now.",
		},
	}
}
