package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/ppiankov/cardpricer/internal/model"
)

// cardFields is the whitelist of raw keys handed to the mechanics pipeline
var cardFields = []string{
	"attack", "cost", "durability", "health", "mechanics", "name", "playerClass", "text", "type",
}

// Loader narrows a raw card database to collectible, non-hero cards
type Loader struct {
	excluded          map[string]bool
	includeClassCards bool
}

// NewLoader creates a loader from data settings
func NewLoader(cfg model.DataConfig) *Loader {
	excluded := make(map[string]bool, len(cfg.ExcludedSets))
	for _, name := range cfg.ExcludedSets {
		excluded[name] = true
	}
	return &Loader{
		excluded:          excluded,
		includeClassCards: cfg.IncludeClassCards,
	}
}

// LoadFile reads a card database from disk
func (l *Loader) LoadFile(path string) ([]model.Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card database: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes a set name to card list document. Sets are visited in name
// order so the card order is stable across runs.
func (l *Loader) Parse(data []byte) ([]model.Card, error) {
	var sets map[string][]map[string]any
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parse card database: %w", err)
	}

	names := make([]string, 0, len(sets))
	for name := range sets {
		if !l.excluded[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var cards []model.Card
	for _, set := range names {
		for i, raw := range sets[set] {
			if !keep(raw) {
				continue
			}
			card, err := decodeCard(raw)
			if err != nil {
				return nil, fmt.Errorf("set %s card %d: %w", set, i, err)
			}
			if !l.includeClassCards && card.PlayerClass != "" {
				continue
			}
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func keep(raw map[string]any) bool {
	collectible, _ := raw["collectible"].(bool)
	if !collectible {
		return false
	}
	typ, ok := raw["type"].(string)
	return ok && typ != "Hero"
}

func decodeCard(raw map[string]any) (model.Card, error) {
	fields := make(map[string]any, len(cardFields))
	for _, key := range cardFields {
		if v, ok := raw[key]; ok && v != nil {
			fields[key] = v
		}
	}

	var card model.Card
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &card,
		TagName: "mapstructure",
	})
	if err != nil {
		return card, err
	}
	if err := decoder.Decode(fields); err != nil {
		return card, fmt.Errorf("decode card: %w", err)
	}
	return card, nil
}
