package model

// Simple mechanic tags, derivable from tags and base stats alone
const (
	MechanicCharge       = "Charge"
	MechanicStealth      = "Stealth"
	MechanicWindfury     = "Windfury"
	MechanicTaunt        = "Taunt"
	MechanicDivineShield = "Divine Shield"
)

// SimpleMechanics lists the simple mechanic tags in a fixed order
var SimpleMechanics = []string{
	MechanicCharge,
	MechanicStealth,
	MechanicWindfury,
	MechanicTaunt,
	MechanicDivineShield,
}

// Feature names written by the tag mapper and the text rules
const (
	FeatureAttack       = "attack"
	FeatureHealth       = "health"
	FeatureDurability   = "durability"
	FeatureIntrinsic    = "intrinsic"
	FeatureWindfury     = "windfury"
	FeatureCharge       = "charge"
	FeatureStealth      = "stealth"
	FeatureTaunt        = "taunt"
	FeatureDivineShield = "divine shield"

	FeatureOverload            = "overload"
	FeaturePoisonous           = "poisonous"
	FeatureElusive             = "elusive"
	FeatureClumsy              = "clumsy"
	FeatureDealOwnHeroDamage   = "deal_own_hero_damage"
	FeatureDealEnemyHeroDamage = "deal_enemy_hero_damage"
	FeatureDealBoardDamage     = "deal_board_damage"
	FeatureDealDamage          = "deal_damage"
	FeatureDiscardCard         = "discard_card"
	FeatureSpellDamage         = "spell_damage"
)

// RejectionReason classifies why a card was left out of the feature table
type RejectionReason string

const (
	RejectUnsupportedType     RejectionReason = "unsupported_type"
	RejectUnsupportedMechanic RejectionReason = "unsupported_mechanic"
	RejectUnrecognizedResidue RejectionReason = "unrecognized_residue"
)

// Rejection records one dropped card
type Rejection struct {
	Name   string          `json:"name"`
	Reason RejectionReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

// RejectionStats aggregates rejections per reason
type RejectionStats struct {
	Total    int                     `json:"total"`
	Accepted int                     `json:"accepted"`
	ByReason map[RejectionReason]int `json:"by_reason"`
}

// NewRejectionStats returns empty stats
func NewRejectionStats() RejectionStats {
	return RejectionStats{ByReason: make(map[RejectionReason]int)}
}

// Record counts a rejection
func (s *RejectionStats) Record(r Rejection) {
	s.ByReason[r.Reason]++
}

// Rejected returns the number of dropped cards
func (s RejectionStats) Rejected() int {
	n := 0
	for _, c := range s.ByReason {
		n += c
	}
	return n
}
