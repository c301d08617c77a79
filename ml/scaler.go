package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// StandardScaler applies the (x - mean) / scale transform the model was
// trained with. A univariate scaler (one mean/scale pair) is applied
// elementwise, which is how the flux-array model head was fitted.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func LoadScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var scaler StandardScaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if err := scaler.validate(); err != nil {
		return nil, err
	}
	return &scaler, nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 {
		return errors.New("scaler has no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean/scale length mismatch: %d vs %d", len(s.Mean), len(s.Scale))
	}
	return nil
}

// NumFeatures returns the feature width the scaler was fitted on.
func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform scales rows in place-order and returns a new slice.
// Multivariate scalers require the row width to match the fitted width.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows to transform")
	}

	scaled := make([][]float64, len(rows))
	for i, row := range rows {
		if s.NumFeatures() > 1 && len(row) != s.NumFeatures() {
			return nil, fmt.Errorf("row %d has %d features, scaler expects %d", i, len(row), s.NumFeatures())
		}
		out := make([]float64, len(row))
		for j, value := range row {
			mean, scale := s.params(j)
			out[j] = (value - mean) / scale
		}
		scaled[i] = out
	}
	return scaled, nil
}

func (s *StandardScaler) params(col int) (mean, scale float64) {
	idx := col
	if s.NumFeatures() == 1 {
		idx = 0
	}
	mean = s.Mean[idx]
	scale = s.Scale[idx]
	// sklearn replaces zero variance with 1 to keep the column constant
	if scale == 0 {
		scale = 1
	}
	return mean, scale
}
