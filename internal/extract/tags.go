package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/cardpricer/internal/model"
)

// CardKind is the closed set of card categories the tag mapper understands
type CardKind int

const (
	KindUnsupported CardKind = iota
	KindMinion
)

// KindOf classifies a raw card type
func KindOf(cardType string) CardKind {
	switch cardType {
	case "Minion":
		return KindMinion
	default:
		return KindUnsupported
	}
}

func (k CardKind) String() string {
	switch k {
	case KindMinion:
		return "minion"
	default:
		return "unsupported"
	}
}

// IgnoredMechanics are tags that carry no pricing signal on their own or
// whose effect is described (and priced) by the ability text
var IgnoredMechanics = []string{"Combo", "Battlecry", "Deathrattle", "Spellpower", "Poisonous"}

// TagMapper derives features from a card's explicit tags and base stats
type TagMapper struct {
	strict     bool
	chargeMode model.ChargeMode
	simple     map[string]bool
	ignored    map[string]bool
}

// NewTagMapper creates a tag mapper
func NewTagMapper(strict bool, chargeMode model.ChargeMode) *TagMapper {
	m := &TagMapper{
		strict:     strict,
		chargeMode: chargeMode,
		simple:     make(map[string]bool),
		ignored:    make(map[string]bool),
	}
	for _, name := range model.SimpleMechanics {
		m.simple[name] = true
	}
	for _, name := range IgnoredMechanics {
		m.ignored[name] = true
	}
	return m
}

// Map dispatches on the card kind and returns the derived features.
// Returns ErrUnsupportedType for kinds without a mapper and, in strict mode,
// ErrUnsupportedMechanic for tags outside the known set.
func (m *TagMapper) Map(card model.Card) (model.Features, error) {
	switch kind := KindOf(card.Type); kind {
	case KindMinion:
		return m.mapMinion(card)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, card.Type)
	}
}

// mapMinion derives base stats and the simple mechanics of a minion
func (m *TagMapper) mapMinion(card model.Card) (model.Features, error) {
	if m.strict {
		if unknown := m.unknownMechanics(card.Mechanics); len(unknown) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMechanic, strings.Join(unknown, ", "))
		}
	}

	f := baseFeatures(card)
	attack := float64(card.Attack)

	if card.HasMechanic(model.MechanicWindfury) {
		f[model.FeatureWindfury] = attack
	}
	if card.HasMechanic(model.MechanicCharge) {
		charge := attack
		if m.chargeMode == model.ChargeAttackPlusWindfury {
			charge += f.Get(model.FeatureWindfury)
		}
		f[model.FeatureCharge] = charge
	}
	if card.HasMechanic(model.MechanicStealth) {
		f[model.FeatureStealth] = 1
	}
	if card.HasMechanic(model.MechanicTaunt) {
		f[model.FeatureTaunt] = float64(card.Health)
	}
	if card.HasMechanic(model.MechanicDivineShield) {
		f[model.FeatureDivineShield] = 1
	}

	return f, nil
}

// unknownMechanics returns the tags that are neither simple nor ignored
func (m *TagMapper) unknownMechanics(mechanics []string) []string {
	var unknown []string
	seen := make(map[string]bool)
	for _, tag := range mechanics {
		if m.simple[tag] || m.ignored[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		unknown = append(unknown, tag)
	}
	sort.Strings(unknown)
	return unknown
}

// baseFeatures copies the numeric card fields used as predictors
func baseFeatures(card model.Card) model.Features {
	f := model.Features{
		model.FeatureAttack: float64(card.Attack),
		model.FeatureHealth: float64(card.Health),
	}
	if card.Durability != nil {
		f[model.FeatureDurability] = float64(*card.Durability)
	}
	return f
}
