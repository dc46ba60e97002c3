package model

import "sort"

// Card is a whitelisted raw card record as handed over by the loader
type Card struct {
	Name        string   `json:"name" mapstructure:"name"`
	Type        string   `json:"type" mapstructure:"type"`
	Attack      int      `json:"attack,omitempty" mapstructure:"attack"`
	Health      int      `json:"health,omitempty" mapstructure:"health"`
	Durability  *int     `json:"durability,omitempty" mapstructure:"durability"` // Weapons only
	Cost        int      `json:"cost" mapstructure:"cost"`                        // Regression target, never a predictor
	Mechanics   []string `json:"mechanics,omitempty" mapstructure:"mechanics"`
	Text        string   `json:"text,omitempty" mapstructure:"text"`
	PlayerClass string   `json:"playerClass,omitempty" mapstructure:"playerClass"`
}

// HasMechanic reports whether the card carries the given tag
func (c Card) HasMechanic(tag string) bool {
	for _, m := range c.Mechanics {
		if m == tag {
			return true
		}
	}
	return false
}

// Features maps a feature name to its numeric value.
// An absent key means "feature not present" and is read as 0.
type Features map[string]float64

// Add accumulates v onto feature name
func (f Features) Add(name string, v float64) {
	f[name] += v
}

// Merge accumulates every entry of other into f
func (f Features) Merge(other Features) {
	for k, v := range other {
		f[k] += v
	}
}

// Get returns the value of a feature, 0 when absent
func (f Features) Get(name string) float64 {
	return f[name]
}

// Names returns the feature names in sorted order
func (f Features) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ProcessedCard is a card accepted by the mechanics pipeline
type ProcessedCard struct {
	Card     Card     `json:"card"`
	Features Features `json:"features"`
	Residue  string   `json:"residue,omitempty"` // Unexplained text, only kept in lenient mode
}
