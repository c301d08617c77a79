package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FeatureFrame holds the numeric columns that survived CSV parsing.
// Property estimation reads named columns from the first row.
type FeatureFrame struct {
	Columns []string
	Rows    [][]float64
}

// First returns the first-row value of a named column.
func (f *FeatureFrame) First(name string) (float64, bool) {
	if len(f.Rows) == 0 {
		return 0, false
	}
	for i, col := range f.Columns {
		if col == name {
			return f.Rows[0][i], true
		}
	}
	return 0, false
}

// Preprocessor turns raw request payloads into the tensor layout the
// BiLSTM expects.
type Preprocessor struct {
	scaler *StandardScaler
}

func NewPreprocessor(scaler *StandardScaler) *Preprocessor {
	return &Preprocessor{scaler: scaler}
}

// FromCSV parses CSV light-curve text, keeps numeric columns, drops a
// LABEL target column, fills missing cells with the column mean, scales
// and reshapes to (samples, features, 1).
func (p *Preprocessor) FromCSV(csvText string) (Tensor, *FeatureFrame, error) {
	frame, err := parseCSV(csvText)
	if err != nil {
		return nil, nil, err
	}

	scaled, err := p.scaler.Transform(frame.Rows)
	if err != nil {
		return nil, nil, err
	}
	return rowsToTensor(scaled), frame, nil
}

// FromFlux prepares a single flux array as one sample of shape
// (1, len(sample), 1).
func (p *Preprocessor) FromFlux(sample []float64) (Tensor, error) {
	if len(sample) == 0 {
		return nil, errors.New("flux array is empty")
	}
	scaled, err := p.scaler.Transform([][]float64{sample})
	if err != nil {
		return nil, err
	}
	return rowsToTensor(scaled), nil
}

// FromFlux2D prepares a 2-D flux payload. A single row is one sample
// with N timesteps; multiple rows form one sample with a feature channel
// per column, matching what the model head was exported with.
func (p *Preprocessor) FromFlux2D(rows [][]float64) (Tensor, error) {
	if len(rows) == 0 {
		return nil, errors.New("flux matrix is empty")
	}
	if len(rows) == 1 {
		return p.FromFlux(rows[0])
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("flux matrix row %d has %d values, expected %d", i, len(row), width)
		}
	}
	scaled, err := p.scaler.Transform(rows)
	if err != nil {
		return nil, err
	}

	sample := make([][]float64, len(scaled))
	for i, row := range scaled {
		sample[i] = row
	}
	return Tensor{sample}, nil
}

// rowsToTensor gives every value its own channel slot: (rows, cols, 1).
func rowsToTensor(rows [][]float64) Tensor {
	tensor := make(Tensor, len(rows))
	for i, row := range rows {
		steps := make([][]float64, len(row))
		for j, value := range row {
			steps[j] = []float64{value}
		}
		tensor[i] = steps
	}
	return tensor
}

func parseCSV(csvText string) (*FeatureFrame, error) {
	if strings.TrimSpace(csvText) == "" {
		return nil, errors.New("no data provided")
	}

	// Telescope tooling exports arrive as UTF-16 or BOM-prefixed UTF-8;
	// normalize to plain UTF-8 before the csv reader sees the bytes.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := csv.NewReader(transform.NewReader(strings.NewReader(csvText), decoder))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("csv has no data rows")
	}

	header := records[0]
	body := records[1:]

	frame := &FeatureFrame{}
	for col, name := range header {
		if name == "LABEL" {
			continue
		}
		values, numeric := columnValues(body, col)
		if !numeric {
			continue
		}
		frame.Columns = append(frame.Columns, name)
		appendColumn(frame, values)
	}

	if len(frame.Columns) == 0 {
		return nil, errors.New("csv has no numeric columns")
	}
	return frame, nil
}

// columnValues extracts one column, filling missing cells with the
// column mean. The column counts as numeric only when every present
// cell parses and at least one cell is present.
func columnValues(body [][]string, col int) ([]float64, bool) {
	values := make([]float64, len(body))
	present := make([]bool, len(body))
	sum := 0.0
	count := 0

	for i, record := range body {
		if col >= len(record) || strings.TrimSpace(record[col]) == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil || math.IsNaN(value) {
			if err != nil {
				return nil, false
			}
			continue
		}
		values[i] = value
		present[i] = true
		sum += value
		count++
	}
	if count == 0 {
		return nil, false
	}

	mean := sum / float64(count)
	for i := range values {
		if !present[i] {
			values[i] = mean
		}
	}
	return values, true
}

func appendColumn(frame *FeatureFrame, values []float64) {
	if frame.Rows == nil {
		frame.Rows = make([][]float64, len(values))
	}
	for i, value := range values {
		frame.Rows[i] = append(frame.Rows[i], value)
	}
}
