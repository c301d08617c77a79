package ml

import "context"

// Tensor is a prepared model input: (samples, timesteps, channels).
type Tensor [][][]float64

// Model is the opaque inference call. Predict returns one probability
// row per sample: a single element is the sigmoid P(planet), two
// elements are the softmax head [P(no planet), P(planet)].
type Model interface {
	Predict(ctx context.Context, batch Tensor) ([][]float64, error)
}
