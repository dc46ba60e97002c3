package model

import "time"

// Report represents the complete result of one pricing run
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`       // Card database path or URL
	GeneratedAt time.Time `json:"generated_at"` // When the run finished

	Strict      bool       `json:"strict"`
	ChargeMode  ChargeMode `json:"charge_mode"`
	PriceColumn string     `json:"price_column"`
	Refitted    bool       `json:"refitted"` // False when coefficients were supplied

	Stats      RejectionStats `json:"stats"`
	Rejections []Rejection    `json:"rejections,omitempty"`

	Coefficients []Coefficient `json:"coefficients"`
	Cards        []PricedCard  `json:"cards"`

	Principles Principles `json:"principles"`
}

// Coefficient is one fitted weight with its predictor column
type Coefficient struct {
	Column string  `json:"column"`
	Weight float64 `json:"weight"`
}

// PricedCard is one row of the value report. Price keeps the fixed JSON
// key "price" so stored reports decode regardless of the configured
// column name, which only labels rendered tables.
type PricedCard struct {
	Name        string  `json:"name"`
	PlayerClass string  `json:"player_class,omitempty"`
	Cost        int     `json:"cost"`
	Price       float64 `json:"price"`
	Diff        float64 `json:"diff"`  // price - cost; positive means under-costed
	Value       float64 `json:"value"` // diff / (cost - intrinsic), 0 when undefined
	Residue     string  `json:"residue,omitempty"`
}

// Principles documents how prices were derived
type Principles struct {
	TargetTransform  string `json:"target_transform"`
	InverseTransform string `json:"inverse_transform"`
	Solver           string `json:"solver"`
}

// DefaultPrinciples returns the formulas used by the linear pricing model
func DefaultPrinciples() Principles {
	return Principles{
		TargetTransform:  "2 * cost + 1",
		InverseTransform: "(raw - 1) / 2",
		Solver:           "least squares, minimum-norm via SVD",
	}
}

// Intrinsic returns the weight of the bias column, 0 if absent
func (r *Report) Intrinsic() float64 {
	for _, c := range r.Coefficients {
		if c.Column == FeatureIntrinsic {
			return c.Weight
		}
	}
	return 0
}
