package extract

import (
	"errors"
	"fmt"

	"github.com/ppiankov/cardpricer/internal/model"
)

// Processor runs one card through the tag mapper and the text extractor
type Processor struct {
	sanitizer *Sanitizer
	mapper    *TagMapper
	extractor *Extractor
}

// NewProcessor builds a processor from explicit configuration.
// Each processor owns its rule list, so strict and lenient pipelines can
// live side by side.
func NewProcessor(cfg model.ExtractionConfig, rules []Rule) *Processor {
	return &Processor{
		sanitizer: DefaultSanitizer(),
		mapper:    NewTagMapper(cfg.Strict, cfg.ChargeMode),
		extractor: NewExtractor(rules, cfg.Strict),
	}
}

// Explanation shows how one card was processed
type Explanation struct {
	Card       model.Card       `json:"card"`
	Kind       string           `json:"kind"`
	Sanitized  string           `json:"sanitized"`
	Extraction *Extraction      `json:"extraction,omitempty"`
	Features   model.Features   `json:"features,omitempty"`
	Rejection  *model.Rejection `json:"rejection,omitempty"`
}

// Process returns the accepted card, or a rejection for per-card failures.
// The error is non-nil only for failures that must abort the whole run.
func (p *Processor) Process(card model.Card) (*model.ProcessedCard, *model.Rejection, error) {
	exp, err := p.Explain(card)
	if err != nil {
		return nil, nil, err
	}
	if exp.Rejection != nil {
		return nil, exp.Rejection, nil
	}

	processed := &model.ProcessedCard{
		Card:     card,
		Features: exp.Features,
	}
	if exp.Extraction != nil {
		processed.Residue = exp.Extraction.Residue
	}
	return processed, nil, nil
}

// Explain processes a card and keeps every intermediate result
func (p *Processor) Explain(card model.Card) (*Explanation, error) {
	exp := &Explanation{
		Card: card,
		Kind: KindOf(card.Type).String(),
	}

	features, err := p.mapper.Map(card)
	if err != nil {
		exp.Rejection = rejection(card, err)
		return exp, nil
	}

	exp.Sanitized = p.sanitizer.Sanitize(card.Text, card.Mechanics)
	if exp.Sanitized != "" {
		extraction, err := p.extractor.Extract(exp.Sanitized)
		if err != nil && !errors.Is(err, ErrUnrecognizedResidue) {
			return nil, fmt.Errorf("card %q: %w", card.Name, err)
		}
		exp.Extraction = extraction
		if err != nil {
			exp.Rejection = rejection(card, err)
			return exp, nil
		}
		features.Merge(extraction.Features)
	}

	exp.Features = features
	return exp, nil
}

// ProcessAll processes cards sequentially in input order
func (p *Processor) ProcessAll(cards []model.Card) ([]model.ProcessedCard, []model.Rejection, model.RejectionStats, error) {
	stats := model.NewRejectionStats()
	stats.Total = len(cards)

	var accepted []model.ProcessedCard
	var rejected []model.Rejection
	for _, card := range cards {
		processed, rej, err := p.Process(card)
		if err != nil {
			return nil, nil, stats, err
		}
		if rej != nil {
			stats.Record(*rej)
			rejected = append(rejected, *rej)
			continue
		}
		accepted = append(accepted, *processed)
	}
	stats.Accepted = len(accepted)

	return accepted, rejected, stats, nil
}

// rejection converts a per-card error into a rejection record
func rejection(card model.Card, err error) *model.Rejection {
	reason := model.RejectUnrecognizedResidue
	switch {
	case errors.Is(err, ErrUnsupportedType):
		reason = model.RejectUnsupportedType
	case errors.Is(err, ErrUnsupportedMechanic):
		reason = model.RejectUnsupportedMechanic
	}
	return &model.Rejection{
		Name:   card.Name,
		Reason: reason,
		Detail: err.Error(),
	}
}
