package price

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SaveCoefficients writes coefficients as YAML
func SaveCoefficients(path string, c *Coefficients) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal coefficients: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write coefficients: %w", err)
	}
	return nil
}

// LoadCoefficients reads coefficients written by SaveCoefficients
func LoadCoefficients(path string) (*Coefficients, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coefficients: %w", err)
	}

	var c Coefficients
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse coefficients: %w", err)
	}
	if len(c.Columns) != len(c.Weights) {
		return nil, fmt.Errorf("%w: %d columns, %d weights in %s", ErrDimensionMismatch, len(c.Columns), len(c.Weights), path)
	}
	return &c, nil
}
