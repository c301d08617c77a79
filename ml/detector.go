package ml

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

const modelType = "BiLSTM Neural Network"

// Verdict is the full CSV-path response: score plus the backfilled
// planet properties.
type Verdict struct {
	IsExoplanet   bool    `json:"isExoplanet"`
	Confidence    float64 `json:"confidence"`
	Probability   float64 `json:"probability"`
	Prediction    int     `json:"prediction"`
	OrbitalPeriod float64 `json:"orbitalPeriod"`
	Temperature   float64 `json:"temperature"`
	TransitDepth  float64 `json:"transitDepth"`
	PlanetType    string  `json:"planetType"`
	ModelType     string  `json:"modelType"`
	NumSamples    int     `json:"numSamples"`
}

// Classification is the flux-path response for a single sample.
type Classification struct {
	Prediction    int
	Label         string
	Confidence    float64
	Probabilities map[string]float64
}

// Detector ties the preprocessor, the model call and the verdict
// scoring together. Identical tensors are served from an LRU cache so
// repeated submissions skip the runner round-trip.
type Detector struct {
	model Model
	pre   *Preprocessor
	cache *lru.Cache[string, [][]float64]
}

func NewDetector(model Model, pre *Preprocessor, cacheSize int) (*Detector, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if pre == nil {
		return nil, errors.New("preprocessor is required")
	}

	detector := &Detector{model: model, pre: pre}
	if cacheSize > 0 {
		cache, err := lru.New[string, [][]float64](cacheSize)
		if err != nil {
			return nil, err
		}
		detector.cache = cache
	}
	return detector, nil
}

// DetectCSV scores raw CSV light-curve text and backfills the planet
// properties from the parsed columns.
func (d *Detector) DetectCSV(ctx context.Context, csvText string) (*Verdict, error) {
	tensor, frame, err := d.pre.FromCSV(csvText)
	if err != nil {
		return nil, err
	}

	probs, err := d.predict(ctx, tensor)
	if err != nil {
		return nil, err
	}

	sum := 0.0
	for _, row := range probs {
		sum += planetProbability(row)
	}
	avg := sum / float64(len(probs))
	confidence := avg * 100

	props := EstimateProperties(frame, confidence)

	verdict := &Verdict{
		IsExoplanet:   avg > 0.5,
		Confidence:    round2(confidence),
		Probability:   avg,
		OrbitalPeriod: round2(props.OrbitalPeriod),
		Temperature:   round2(props.Temperature),
		TransitDepth:  props.TransitDepth,
		PlanetType:    props.PlanetType,
		ModelType:     modelType,
		NumSamples:    len(tensor),
	}
	if verdict.IsExoplanet {
		verdict.Prediction = 1
	}
	return verdict, nil
}

// Classify scores one flux array and returns the winning class.
func (d *Detector) Classify(ctx context.Context, sample []float64) (*Classification, error) {
	tensor, err := d.pre.FromFlux(sample)
	if err != nil {
		return nil, err
	}
	return d.classifyTensor(ctx, tensor)
}

// Classify2D scores a 2-D flux payload as a single sample.
func (d *Detector) Classify2D(ctx context.Context, rows [][]float64) (*Classification, error) {
	tensor, err := d.pre.FromFlux2D(rows)
	if err != nil {
		return nil, err
	}
	return d.classifyTensor(ctx, tensor)
}

func (d *Detector) classifyTensor(ctx context.Context, tensor Tensor) (*Classification, error) {
	probs, err := d.predict(ctx, tensor)
	if err != nil {
		return nil, err
	}

	noPlanet, planet := classProbabilities(probs[0])
	result := &Classification{
		Confidence: noPlanet,
		Label:      "No Exoplanet",
		Probabilities: map[string]float64{
			"no_planet": noPlanet,
			"planet":    planet,
		},
	}
	if planet > noPlanet {
		result.Prediction = 1
		result.Label = "Exoplanet Detected"
		result.Confidence = planet
	}
	return result, nil
}

func (d *Detector) predict(ctx context.Context, tensor Tensor) ([][]float64, error) {
	key := ""
	if d.cache != nil {
		key = hashTensor(tensor)
		if cached, ok := d.cache.Get(key); ok {
			return cached, nil
		}
	}

	probs, err := d.model.Predict(ctx, tensor)
	if err != nil {
		return nil, err
	}
	if len(probs) == 0 {
		return nil, errors.New("model returned no predictions")
	}
	for _, row := range probs {
		if len(row) == 0 {
			return nil, errors.New("model returned an empty probability row")
		}
	}

	if d.cache != nil {
		d.cache.Add(key, probs)
	}
	return probs, nil
}

// planetProbability reads P(planet) from either model head.
func planetProbability(row []float64) float64 {
	if len(row) == 1 {
		return row[0]
	}
	return row[1]
}

func classProbabilities(row []float64) (noPlanet, planet float64) {
	planet = planetProbability(row)
	if len(row) == 1 {
		return 1 - planet, planet
	}
	return row[0], planet
}

func hashTensor(tensor Tensor) string {
	hasher := sha256.New()
	var buf [8]byte
	for _, sample := range tensor {
		for _, step := range sample {
			for _, value := range step {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
				hasher.Write(buf[:])
			}
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
