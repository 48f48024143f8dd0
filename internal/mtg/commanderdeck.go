package mtg

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
)

// Bracket and commander count bounds accepted by [Service.CommanderDeck].
const (
	MinBracket     = 1
	MaxBracket     = 5
	DefaultBracket = 2
	MaxCommanders  = 2
)

// PartnerKind is the pairing ability a commander carries.
type PartnerKind string

const (
	PartnerNone      PartnerKind = ""
	PartnerWith      PartnerKind = "Partner with"
	PartnerGeneric   PartnerKind = "Partner"
	ChooseBackground PartnerKind = "Choose a Background"
	FriendsForever   PartnerKind = "Friends forever"
	DoctorsCompanion PartnerKind = "Doctor's companion"
)

// partnerPrecedence is the detection order. "Partner with" contains
// "Partner" and is therefore checked first.
var partnerPrecedence = []PartnerKind{PartnerWith, ChooseBackground, FriendsForever, DoctorsCompanion, PartnerGeneric}

// CommanderInfo is a resolved commander and its eligibility.
type CommanderInfo struct {
	Name           string      `json:"name"`
	TypeLine       string      `json:"type_line"`
	OracleText     string      `json:"oracle_text"`
	ColorIdentity  []string    `json:"color_identity"`
	ManaCost       string      `json:"mana_cost"`
	CMC            float64     `json:"cmc"`
	Keywords       []string    `json:"keywords"`
	CanBeCommander bool        `json:"can_be_commander"`
	PartnerType    PartnerKind `json:"partner_type,omitempty"`
	PartnerWith    string      `json:"partner_with,omitempty"`
}

func describeCommander(c *scryfall.Card) CommanderInfo {
	oracle := c.Oracle()
	info := CommanderInfo{
		Name:          c.Name,
		TypeLine:      c.TypeLine,
		OracleText:    oracle,
		ColorIdentity: nonNil(c.ColorIdentity),
		ManaCost:      c.ManaCost,
		CMC:           c.CMC,
		Keywords:      nonNil(c.Keywords),
	}
	legendaryCreature := strings.Contains(c.TypeLine, "Legendary") && strings.Contains(c.TypeLine, "Creature")
	info.CanBeCommander = legendaryCreature || strings.Contains(strings.ToLower(oracle), "can be your commander")
	info.PartnerType, info.PartnerWith = partnerAbility(oracle)
	return info
}

// partnerAbility detects the pairing ability in oracle text. For "Partner
// with" it also returns the named partner.
func partnerAbility(oracle string) (PartnerKind, string) {
	for _, k := range partnerPrecedence {
		idx := indexFold(oracle, string(k))
		if idx < 0 {
			continue
		}
		if k != PartnerWith {
			return k, ""
		}
		rest := oracle[idx+len(PartnerWith):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if paren := strings.Index(rest, " ("); paren >= 0 {
			rest = rest[:paren]
		}
		return k, strings.TrimSpace(rest)
	}
	return PartnerNone, ""
}

// indexFold is a case-insensitive [strings.Index] for an ASCII keyword. The
// returned offset is into s itself.
func indexFold(s, keyword string) int {
	for i := 0; i+len(keyword) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(keyword)], keyword) {
			return i
		}
	}
	return -1
}

// validPartners reports whether a and b may be paired, in one of five ways:
// a named partner, generic partner on both, Choose a Background with a
// Background, Friends forever on both, or Doctor's companion with a Doctor.
func validPartners(a, b CommanderInfo) bool {
	pairs := [2][2]CommanderInfo{{a, b}, {b, a}}
	for _, p := range pairs {
		x, y := p[0], p[1]
		switch {
		case x.PartnerType == PartnerWith && x.PartnerWith == y.Name:
			return true
		case x.PartnerType == ChooseBackground && strings.Contains(y.TypeLine, "Background"):
			return true
		case x.PartnerType == DoctorsCompanion && strings.Contains(y.TypeLine, "Doctor"):
			return true
		}
	}
	switch {
	case a.PartnerType == PartnerGeneric && b.PartnerType == PartnerGeneric:
		return true
	case a.PartnerType == FriendsForever && b.PartnerType == FriendsForever:
		return true
	}
	return false
}

// ValidationResults summarizes commander validation.
type ValidationResults struct {
	Passed              bool     `json:"passed"`
	Errors              []string `json:"errors"`
	CommanderCount      int      `json:"commander_count"`
	PartnerRulesChecked bool     `json:"partner_rules_checked"`
}

// validateCommanders applies the eligibility and partner rules. It may mark a
// Background chosen by its partner as eligible.
func validateCommanders(cmds []CommanderInfo) ValidationResults {
	res := ValidationResults{Errors: []string{}, CommanderCount: len(cmds), PartnerRulesChecked: len(cmds) == 2}

	if len(cmds) == 2 {
		for i, j := range []int{1, 0} {
			if cmds[j].PartnerType == ChooseBackground && strings.Contains(cmds[i].TypeLine, "Background") {
				cmds[i].CanBeCommander = true
			}
		}
	}
	for _, c := range cmds {
		if !c.CanBeCommander {
			res.Errors = append(res.Errors, fmt.Sprintf("%s is not a legendary creature and doesn't have 'can be your commander' text", c.Name))
		}
	}
	if len(cmds) == 2 {
		a, b := cmds[0], cmds[1]
		if !a.CanBeCommander || !b.CanBeCommander {
			res.Errors = append(res.Errors, "Both cards must be able to be commanders")
		}
		if !validPartners(a, b) {
			res.Errors = append(res.Errors, fmt.Sprintf("Commanders are not valid partners. %s has %s and %s has %s",
				a.Name, partnerLabel(a.PartnerType), b.Name, partnerLabel(b.PartnerType)))
		}
	}
	res.Passed = len(res.Errors) == 0
	return res
}

func partnerLabel(k PartnerKind) string {
	if k == PartnerNone {
		return "no partner ability"
	}
	return string(k)
}

// colorIdentity returns the sorted union of the commanders' identities.
func colorIdentity(cmds []CommanderInfo) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.ColorIdentity...)
	}
	slices.Sort(out)
	return nonNil(slices.Compact(out))
}

// FormatRules bundles the rules and format context of a deck request.
type FormatRules struct {
	ComprehensiveRules Outcome[RulesInfo] `json:"comprehensive_rules"`
	CommanderContext   Document           `json:"commander_context"`
}

// BracketInfo is the bracket catalog sliced to the requested tier.
type BracketInfo struct {
	AllBrackets          *Brackets `json:"all_brackets"`
	TargetBracket        int       `json:"target_bracket"`
	TargetBracketName    string    `json:"target_bracket_name"`
	TargetBracketDetails Bracket   `json:"target_bracket_details"`
}

// CommanderData is the per-commander deck building data. Each field holds
// either the data or an error object.
type CommanderData struct {
	Name            string                   `json:"name"`
	Recommendations Outcome[Recommendations] `json:"recommendations"`
	Combos          Outcome[ComboResult]     `json:"combos"`
	Rulings         Outcome[RulingResult]    `json:"rulings"`
}

// DeckBuildingData holds the per-commander data.
type DeckBuildingData struct {
	Commanders []CommanderData `json:"commanders"`
}

// CommanderDeck is the result of [Service.CommanderDeck]. When validation
// fails only the commanders, validation results and color identity are set
// and Error is non-empty.
type CommanderDeck struct {
	Error             string            `json:"error,omitempty"`
	Commanders        []CommanderInfo   `json:"commanders"`
	Valid             bool              `json:"valid"`
	ValidationResults ValidationResults `json:"validation_results"`
	ColorIdentity     []string          `json:"color_identity"`
	TargetBracket     int               `json:"target_bracket"`

	FormatRules      *FormatRules      `json:"format_rules,omitempty"`
	BracketInfo      *BracketInfo      `json:"bracket_info,omitempty"`
	ExportFormat     Document          `json:"export_format,omitempty"`
	DeckBuildingData *DeckBuildingData `json:"deck_building_data,omitempty"`
	Instructions     *Instructions     `json:"deck_generation_instructions,omitempty"`
}

// CommanderDeck validates one or two commanders and, when they form a legal
// command zone, gathers everything needed to build a deck at the given
// bracket. Parameter errors are reported before any lookup; a commander that
// cannot be resolved ends the call with an error; per-commander data that
// cannot be fetched is embedded as an error object.
func (s *Service) CommanderDeck(ctx context.Context, names []string, bracket int) (*CommanderDeck, error) {
	if err := checkDeckParams(names, bracket); err != nil {
		return nil, err
	}

	cmds := make([]CommanderInfo, 0, len(names))
	for _, name := range names {
		card, err := s.src.Cards.Named(ctx, name, scryfall.Fuzzy)
		if err != nil {
			return nil, commanderLookupFailure(name, err)
		}
		cmds = append(cmds, describeCommander(card))
	}

	validation := validateCommanders(cmds)
	out := &CommanderDeck{
		Commanders:        cmds,
		Valid:             validation.Passed,
		ValidationResults: validation,
		ColorIdentity:     colorIdentity(cmds),
		TargetBracket:     bracket,
	}
	if !validation.Passed {
		out.Error = "Commander validation failed"
		return out, nil
	}

	observe.Logger(ctx).Info("commanders validated, gathering deck building data", "commanders", names, "bracket", bracket)
	if err := s.gatherDeckData(ctx, out); err != nil {
		return nil, err
	}
	out.Instructions = buildInstructions(out)
	return out, nil
}

func checkDeckParams(names []string, bracket int) error {
	switch {
	case bracket < MinBracket || bracket > MaxBracket:
		return Invalid("Bracket must be between 1 and 5").With("valid", false).With("provided_bracket", bracket)
	case len(names) == 0:
		return Invalid("At least one commander must be provided").With("valid", false)
	case len(names) > MaxCommanders:
		return Invalid("Maximum of 2 commanders allowed").With("valid", false).With("provided_count", len(names))
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return Invalid("Commander names must not be empty").With("valid", false)
		}
	}
	return nil
}

func commanderLookupFailure(name string, err error) *Failure {
	switch upstream.KindOf(err) {
	case upstream.KindNotFound:
		return Fail(fmt.Sprintf("Commander '%s' not found", name), err).
			With("valid", false).
			With("suggestion", "Check the spelling or try a different card name")
	case upstream.KindUpstream:
		return Fail(fmt.Sprintf("Failed to fetch card information for '%s'", name), err).
			With("valid", false)
	default:
		return Fail("Failed to fetch commander information", err).With("valid", false)
	}
}

// gatherDeckData fills the shared references and fans out the per-commander
// lookups. Only cancellation of ctx is returned as an error.
func (s *Service) gatherDeckData(ctx context.Context, out *CommanderDeck) error {
	var (
		rules     Outcome[RulesInfo]
		cmdCtx    Document
		cmdCtxErr error
		perCmd    = make([]CommanderData, len(out.Commanders))
	)

	var g errgroup.Group
	g.Go(func() error {
		v, err := s.RulesInfo(ctx)
		rules = Capture(v, err)
		return nil
	})
	g.Go(func() error {
		cmdCtx, cmdCtxErr = s.CommanderContext(ctx)
		return nil
	})
	for i, c := range out.Commanders {
		perCmd[i].Name = c.Name
		g.Go(func() error {
			v, err := s.Recommend(ctx, c.Name, RecommendOptions{IncludeContext: false})
			perCmd[i].Recommendations = Capture(v, err)
			return nil
		})
		g.Go(func() error {
			v, err := s.Combos(ctx, c.Name)
			perCmd[i].Combos = Capture(v, err)
			return nil
		})
		g.Go(func() error {
			v, err := s.Rulings(ctx, c.Name)
			perCmd[i].Rulings = Capture(v, err)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmdCtxErr != nil {
		return cmdCtxErr
	}

	tier, _ := s.ref.Brackets.Tier(out.TargetBracket)
	out.FormatRules = &FormatRules{ComprehensiveRules: rules, CommanderContext: cmdCtx}
	out.BracketInfo = &BracketInfo{
		AllBrackets:          s.ref.Brackets,
		TargetBracket:        out.TargetBracket,
		TargetBracketName:    BracketName(out.TargetBracket),
		TargetBracketDetails: tier,
	}
	out.ExportFormat = s.ExportFormat()
	out.DeckBuildingData = &DeckBuildingData{Commanders: perCmd}
	return nil
}
