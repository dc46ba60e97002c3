package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/cardpricer/internal/model"
)

// Rule consumes the clauses it recognizes from residual text.
//
// Apply is pure: it returns the text with every recognized clause removed
// and the features those clauses imply. Clauses it matches but cannot
// price are left in place for the residue check.
type Rule interface {
	// Name returns the rule name
	Name() string

	// Apply consumes recognized clauses from text
	Apply(text string) (rest string, found model.Features, err error)
}

// ClausePrefixes are the keyword prefixes a clause may start with
var ClausePrefixes = []string{"Combo", "Battlecry", "Deathrattle"}

// PhraseRule matches a fixed clause and sets one feature to 1
type PhraseRule struct {
	name    string
	phrase  string
	feature string
}

// NewPhraseRule creates a rule for an exact clause
func NewPhraseRule(name, phrase, feature string) *PhraseRule {
	return &PhraseRule{name: name, phrase: phrase, feature: feature}
}

// Name returns the rule name
func (r *PhraseRule) Name() string { return r.name }

// Apply removes every occurrence of the phrase
func (r *PhraseRule) Apply(text string) (string, model.Features, error) {
	if !strings.Contains(text, r.phrase) {
		return text, nil, nil
	}
	return strings.ReplaceAll(text, r.phrase, ""), model.Features{r.feature: 1}, nil
}

// PatternRule matches a regular expression and writes one or more features.
//
// Recognized capture groups:
//   - prefix: optional clause keyword, must be one of ClausePrefixes
//   - value: integer magnitude, 1 when absent
//   - mod: key into the coefficient table; unknown keys leave the clause unconsumed
type PatternRule struct {
	name     string
	pattern  *regexp.Regexp
	features []string
	mods     map[string][]float64
}

// NewPatternRule creates a regex rule. With nil mods every feature receives
// the captured value; otherwise feature i receives mods[key][i] * value.
func NewPatternRule(name, expr string, features []string, mods map[string][]float64) *PatternRule {
	return &PatternRule{
		name:     name,
		pattern:  regexp.MustCompile(expr),
		features: features,
		mods:     mods,
	}
}

// Name returns the rule name
func (r *PatternRule) Name() string { return r.name }

// Apply removes every priced match of the pattern
func (r *PatternRule) Apply(text string) (string, model.Features, error) {
	matches := r.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil, nil
	}

	names := r.pattern.SubexpNames()
	found := model.Features{}
	consumed := false

	var rest strings.Builder
	last := 0
	for _, m := range matches {
		groups := captures(text, names, m)

		if prefix, ok := groups["prefix"]; ok && !isClausePrefix(prefix) {
			return "", nil, fmt.Errorf("%w: %q in %q", ErrPrefixAssertion, prefix, text[m[0]:m[1]])
		}

		writes, ok := r.values(groups)
		if !ok {
			continue
		}

		rest.WriteString(text[last:m[0]])
		last = m[1]
		found.Merge(writes)
		consumed = true
	}

	if !consumed {
		return text, nil, nil
	}
	rest.WriteString(text[last:])
	return rest.String(), found, nil
}

// values computes the features for one match
func (r *PatternRule) values(groups map[string]string) (model.Features, bool) {
	value := 1.0
	if raw, ok := groups["value"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false
		}
		value = float64(n)
	}

	writes := model.Features{}
	if r.mods == nil {
		for _, feature := range r.features {
			writes[feature] = value
		}
		return writes, true
	}

	coeffs, ok := r.mods[strings.TrimSpace(groups["mod"])]
	if !ok {
		return nil, false
	}
	for i, feature := range r.features {
		if i < len(coeffs) {
			writes[feature] = coeffs[i] * value
		}
	}
	return writes, true
}

// captures maps the participating named groups of one match
func captures(text string, names []string, m []int) map[string]string {
	groups := make(map[string]string)
	for i, name := range names {
		if name == "" || 2*i+1 >= len(m) || m[2*i] < 0 {
			continue
		}
		groups[name] = text[m[2*i]:m[2*i+1]]
	}
	return groups
}

func isClausePrefix(prefix string) bool {
	for _, p := range ClausePrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// prefixExpr is the optional keyword prefix shared by clause rules
const prefixExpr = `(?:(?P<prefix>\w+): )?`

// DamageTargets weighs "Deal N damage to X" per target phrase as
// (own hero, enemy hero, board)
var DamageTargets = map[string][]float64{
	"each hero":                    {1, 1, 0},
	"the enemy hero":               {0, 1, 0},
	"your hero":                    {1, 0, 0},
	"all minions":                  {0, 0, 1},
	"all minions with Deathrattle": {0, 0, 0.0944}, // approximate chance a board minion has Deathrattle
	"ALL characters":               {0, 0, 1},
	"ALL other characters":         {0, 0, 1},
}

// DiscardCounts maps the discard quantifier to a card count
var DiscardCounts = map[string][]float64{
	"a":   {1},
	"two": {2},
}

// DefaultRules returns the ordered text rule catalogue.
// Targeted damage must run before plain damage, which would otherwise
// consume the head of every targeted clause.
func DefaultRules() []Rule {
	return []Rule{
		NewPatternRule("overload", `Overload: \((?P<value>\d+)\)`,
			[]string{model.FeatureOverload}, nil),
		NewPhraseRule("poisonous", "Destroy any minion damaged by this minion", model.FeaturePoisonous),
		NewPhraseRule("elusive", "Can't be targeted by spells or Hero Powers", model.FeatureElusive),
		NewPhraseRule("clumsy", "50% chance to attack the wrong enemy", model.FeatureClumsy),
		NewPatternRule("targeted_damage", prefixExpr+`Deal (?P<value>\d+) damage to (?P<mod>[^.,]+)`,
			[]string{model.FeatureDealOwnHeroDamage, model.FeatureDealEnemyHeroDamage, model.FeatureDealBoardDamage},
			DamageTargets),
		NewPatternRule("damage", prefixExpr+`Deal (?P<value>\d+) damage(?: to a random enemy minion)?`,
			[]string{model.FeatureDealDamage}, nil),
		NewPatternRule("discard", prefixExpr+`Discard (?P<mod>\w+) random cards?`,
			[]string{model.FeatureDiscardCard}, DiscardCounts),
		NewPatternRule("spell_damage", `Spell Damage \+(?P<value>\d+)`,
			[]string{model.FeatureSpellDamage}, nil),
	}
}
