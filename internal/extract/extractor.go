package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/cardpricer/internal/model"
)

var (
	// ErrUnsupportedType marks cards whose type has no tag mapper
	ErrUnsupportedType = errors.New("unsupported card type")

	// ErrUnsupportedMechanic marks cards carrying tags outside the known set
	ErrUnsupportedMechanic = errors.New("unsupported mechanic")

	// ErrUnrecognizedResidue marks cards whose text is not fully explained by the rules
	ErrUnrecognizedResidue = errors.New("unrecognized text residue")

	// ErrPrefixAssertion is fatal: a clause keyword prefix outside ClausePrefixes
	// means the rule catalogue no longer fits the dataset
	ErrPrefixAssertion = errors.New("unexpected clause prefix")
)

// Step records one rule that consumed text
type Step struct {
	Rule     string         `json:"rule"`
	Before   string         `json:"before"`
	After    string         `json:"after"`
	Features model.Features `json:"features"`
}

// Extraction is the outcome of running the rules over one card's text
type Extraction struct {
	Features model.Features `json:"features"`
	Residue  string         `json:"residue,omitempty"`
	Steps    []Step         `json:"steps,omitempty"`
}

// Extractor applies an ordered rule list to sanitized ability text
type Extractor struct {
	rules  []Rule
	strict bool
}

// NewExtractor creates an extractor; rule order is significant
func NewExtractor(rules []Rule, strict bool) *Extractor {
	return &Extractor{rules: rules, strict: strict}
}

// Rules returns the rule names in application order
func (e *Extractor) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Extract folds the rules over text, stopping once nothing is left.
// In strict mode leftover text yields ErrUnrecognizedResidue together with
// the partial extraction.
func (e *Extractor) Extract(text string) (*Extraction, error) {
	result := &Extraction{Features: model.Features{}}

	residual := normalizeResidue(text)
	for _, rule := range e.rules {
		if residual == "" {
			break
		}

		rest, found, err := rule.Apply(residual)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		rest = normalizeResidue(rest)

		if found != nil {
			result.Features.Merge(found)
			result.Steps = append(result.Steps, Step{
				Rule:     rule.Name(),
				Before:   residual,
				After:    rest,
				Features: found,
			})
		}
		residual = rest
	}

	result.Residue = residual
	if residual != "" && e.strict {
		return result, fmt.Errorf("%w: %q", ErrUnrecognizedResidue, residual)
	}
	return result, nil
}

// normalizeResidue drops empty clauses left behind by consumed text
func normalizeResidue(text string) string {
	var clauses []string
	for _, clause := range strings.Split(text, ".") {
		clause = collapseSpaces(strings.Trim(clause, separators))
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	return strings.Join(clauses, ". ")
}
