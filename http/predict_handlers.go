package http

import (
	"encoding/json"
	"net/http"
	"time"

	"exoserve/db"
	"exoserve/logging"
	"exoserve/ml"
	"exoserve/monitoring"
)

func RegisterPredictHandlers(mux *http.ServeMux) {
	mux.Handle("POST /api/predict", requireAPIKey(handlePredict))
	mux.Handle("POST /api/predict/batch", requireAPIKey(handlePredictBatch))
	mux.Handle("POST /api/predict/csv", requireAPIKey(handlePredictCSV))
}

type predictRequest struct {
	Data                json.RawMessage `json:"data"`
	ReturnProbabilities bool            `json:"return_probabilities"`
}

type csvPredictRequest struct {
	Data string `json:"data"`
}

// fluxPayload 解析一维或二维的flux数组
func fluxPayload(raw json.RawMessage) ([]float64, [][]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil, nil
	}
	var matrix [][]float64
	if err := json.Unmarshal(raw, &matrix); err != nil {
		return nil, nil, err
	}
	return nil, matrix, nil
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	if detector == nil {
		respondError(w, http.StatusServiceUnavailable, "Model not loaded", "")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}
	if len(req.Data) == 0 {
		respondStatusJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Missing required field: data",
			"example": map[string]interface{}{
				"data": []interface{}{1.0, 0.998, 0.995, "..."},
			},
		})
		return
	}

	flat, matrix, err := fluxPayload(req.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Data must be array or list", "")
		return
	}
	if len(flat) == 0 && len(matrix) == 0 {
		respondError(w, http.StatusBadRequest, "Data cannot be empty", "")
		return
	}

	start := time.Now()
	var result *ml.Classification
	if len(flat) > 0 {
		result, err = detector.Classify(r.Context(), flat)
	} else {
		result, err = detector.Classify2D(r.Context(), matrix)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	latency := time.Since(start)

	response := map[string]interface{}{
		"prediction": result.Prediction,
		"label":      result.Label,
		"confidence": result.Confidence,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if req.ReturnProbabilities {
		response["probabilities"] = result.Probabilities
	}

	recordPrediction("flux", result.Prediction, result.Probabilities["planet"], result.Confidence*100, "", 1, latency)
	respondJSON(w, response)
}

func handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if detector == nil {
		respondError(w, http.StatusServiceUnavailable, "Model not loaded", "")
		return
	}

	var req struct {
		Data                [][]float64 `json:"data"`
		ReturnProbabilities bool        `json:"return_probabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Data must be list of arrays", "")
		return
	}
	if req.Data == nil {
		respondError(w, http.StatusBadRequest, "Missing required field: data", "")
		return
	}

	start := time.Now()
	results := make([]map[string]interface{}, 0, len(req.Data))
	for i, sample := range req.Data {
		result, err := detector.Classify(r.Context(), sample)
		if err != nil {
			results = append(results, map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}

		item := map[string]interface{}{
			"index":      i,
			"prediction": result.Prediction,
			"label":      result.Label,
			"confidence": result.Confidence,
		}
		if req.ReturnProbabilities {
			item["probabilities"] = result.Probabilities
		}
		results = append(results, item)

		recordPrediction("flux", result.Prediction, result.Probabilities["planet"], result.Confidence*100, "", 1, 0)
	}

	if collector != nil {
		collector.Observe("predict_batch", time.Since(start))
	}

	respondJSON(w, map[string]interface{}{
		"total":     len(req.Data),
		"results":   results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	if detector == nil {
		respondError(w, http.StatusServiceUnavailable, "Model not loaded", "")
		return
	}

	var req csvPredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}
	if req.Data == "" {
		respondError(w, http.StatusBadRequest, "No data provided", "")
		return
	}

	start := time.Now()
	verdict, err := detector.DetectCSV(r.Context(), req.Data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	latency := time.Since(start)

	recordPrediction("csv", verdict.Prediction, verdict.Probability, verdict.Confidence, verdict.PlanetType, verdict.NumSamples, latency)
	respondJSON(w, verdict)
}

// recordPrediction 记录预测：指标、历史库、事件流
func recordPrediction(source string, verdict int, probability, confidence float64, planetType string, samples int, latency time.Duration) {
	if collector != nil {
		collector.Inc("predictions_total")
		if verdict == 1 {
			collector.Inc("predictions_exoplanet")
		}
		if latency > 0 {
			collector.Observe("predict_"+source, latency)
		}
	}

	err := db.SavePrediction(db.PredictionRecord{
		Source:      source,
		Verdict:     verdict,
		Probability: probability,
		Confidence:  confidence,
		PlanetType:  planetType,
		NumSamples:  samples,
		LatencyMS:   float64(latency) / float64(time.Millisecond),
	})
	if err != nil {
		logging.L().Debugf("save prediction: %v", err)
	}

	if eventHub != nil {
		eventHub.Publish(monitoring.PredictionEvent, map[string]interface{}{
			"source":      source,
			"verdict":     verdict,
			"probability": probability,
			"confidence":  confidence,
			"planet_type": planetType,
			"num_samples": samples,
		})
	}
}
