package ml

import "math"

// PlanetProperties are the heuristically backfilled planet facts
// attached to a CSV verdict.
type PlanetProperties struct {
	OrbitalPeriod float64
	Temperature   float64
	TransitDepth  float64
	PlanetType    string
}

// EstimateProperties reads the named columns when the CSV carries them
// and falls back to the rough heuristics otherwise. confidence is the
// percentage score of the verdict.
func EstimateProperties(frame *FeatureFrame, confidence float64) PlanetProperties {
	props := PlanetProperties{}

	if value, ok := frame.First("orbital_period"); ok {
		props.OrbitalPeriod = value
	} else if len(frame.Columns) > 0 && len(frame.Rows) > 0 {
		// first feature as a proxy for the period
		props.OrbitalPeriod = math.Abs(frame.Rows[0][0]) * 10
	} else {
		props.OrbitalPeriod = 5.3
	}

	if value, ok := frame.First("temperature"); ok {
		props.Temperature = value
	} else {
		props.Temperature = 1200 + confidence*10
	}

	if value, ok := frame.First("transit_depth"); ok {
		props.TransitDepth = value
	} else {
		props.TransitDepth = 0.001
	}

	switch {
	case props.Temperature > 1500:
		props.PlanetType = "Hot Jupiter"
	case props.Temperature > 800:
		props.PlanetType = "Super Earth"
	case props.OrbitalPeriod < 10:
		props.PlanetType = "Close-in Planet"
	default:
		props.PlanetType = "Neptune-like"
	}
	return props
}
