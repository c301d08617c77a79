package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"exoserve/ml"
)

type fakeModel struct {
	rows [][]float64
}

func (f *fakeModel) Predict(ctx context.Context, batch ml.Tensor) ([][]float64, error) {
	if f.rows != nil {
		return f.rows, nil
	}
	rows := make([][]float64, len(batch))
	for i := range rows {
		rows[i] = []float64{0.9}
	}
	return rows, nil
}

func setTestDetector(t *testing.T, model ml.Model) {
	t.Helper()
	pre := ml.NewPreprocessor(&ml.StandardScaler{Mean: []float64{0}, Scale: []float64{1}})
	detector, err := ml.NewDetector(model, pre, 0)
	if err != nil {
		t.Fatalf("build detector: %v", err)
	}
	SetDetector(detector)
	t.Cleanup(func() { SetDetector(nil) })
}

func keyedMux(t *testing.T) (*http.ServeMux, string) {
	t.Helper()
	_, key := newTestKeystore(t)
	mux := http.NewServeMux()
	RegisterPredictHandlers(mux)
	return mux, key
}

func TestHandlePredictFlux(t *testing.T) {
	setTestDetector(t, &fakeModel{rows: [][]float64{{0.8}}})
	mux, key := keyedMux(t)

	body := `{"data":[1.0,0.998,0.995],"return_probabilities":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["prediction"].(float64) != 1 {
		t.Fatalf("unexpected prediction: %v", payload["prediction"])
	}
	if payload["label"] != "Exoplanet Detected" {
		t.Fatalf("unexpected label: %v", payload["label"])
	}
	probs, ok := payload["probabilities"].(map[string]interface{})
	if !ok {
		t.Fatal("expected probabilities in response")
	}
	if probs["planet"].(float64) != 0.8 {
		t.Fatalf("unexpected planet probability: %v", probs["planet"])
	}
}

func TestHandlePredictMissingData(t *testing.T) {
	setTestDetector(t, &fakeModel{})
	mux, key := keyedMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Missing required field: data") {
		t.Fatalf("expected field hint, got %s", w.Body.String())
	}
}

func TestHandlePredictRejectsNonNumericData(t *testing.T) {
	setTestDetector(t, &fakeModel{})
	mux, key := keyedMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"data":"not an array"}`))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePredictEmptyArray(t *testing.T) {
	setTestDetector(t, &fakeModel{})
	mux, key := keyedMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"data":[]}`))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePredictBatch(t *testing.T) {
	setTestDetector(t, &fakeModel{})
	mux, key := keyedMux(t)

	body := `{"data":[[1.0,0.9],[],[0.8,0.7]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", strings.NewReader(body))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Total   int                      `json:"total"`
		Results []map[string]interface{} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Total != 3 || len(payload.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", payload)
	}
	// the empty sample fails in isolation
	if _, ok := payload.Results[1]["error"]; !ok {
		t.Fatalf("expected error for empty sample: %+v", payload.Results[1])
	}
	if payload.Results[0]["label"] != "Exoplanet Detected" {
		t.Fatalf("unexpected label: %v", payload.Results[0]["label"])
	}
	if payload.Results[1]["index"].(float64) != 1 {
		t.Fatalf("expected index preserved: %+v", payload.Results[1])
	}
}

func TestHandlePredictCSV(t *testing.T) {
	setTestDetector(t, &fakeModel{rows: [][]float64{{0.9}, {0.7}}})
	mux, key := keyedMux(t)

	csvText := "flux_1,flux_2\n0.5,0.6\n0.7,0.8\n"
	payload, _ := json.Marshal(map[string]string{"data": csvText})
	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", strings.NewReader(string(payload)))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var verdict ml.Verdict
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !verdict.IsExoplanet || verdict.Prediction != 1 {
		t.Fatalf("expected exoplanet verdict: %+v", verdict)
	}
	if verdict.Confidence != 80 {
		t.Fatalf("expected confidence 80, got %v", verdict.Confidence)
	}
	if verdict.NumSamples != 2 {
		t.Fatalf("expected 2 samples, got %d", verdict.NumSamples)
	}
	if verdict.ModelType != "BiLSTM Neural Network" {
		t.Fatalf("unexpected model type: %s", verdict.ModelType)
	}
}

func TestHandlePredictCSVNoData(t *testing.T) {
	setTestDetector(t, &fakeModel{})
	mux, key := keyedMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", strings.NewReader(`{"data":""}`))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No data provided") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHandlePredictWithoutModel(t *testing.T) {
	SetDetector(nil)
	mux, key := keyedMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"data":[1.0]}`))
	req.Header.Set("X-API-Key", key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without model, got %d", w.Code)
	}
}
