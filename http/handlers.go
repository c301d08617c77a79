package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"exoserve/auth"
	"exoserve/db"
	"exoserve/logging"
	"exoserve/ml"
	"exoserve/monitoring"
)

var (
	detector  *ml.Detector
	keystore  *auth.Keystore
	metadata  *ml.Metadata
	collector *monitoring.Collector
	eventHub  *monitoring.Hub
)

// SetDetector 注入探测器
func SetDetector(d *ml.Detector) {
	detector = d
}

// SetKeystore 注入API密钥存储
func SetKeystore(k *auth.Keystore) {
	keystore = k
}

// SetMetadata 注入模型元数据
func SetMetadata(m *ml.Metadata) {
	metadata = m
}

// SetCollector 注入指标收集器
func SetCollector(c *monitoring.Collector) {
	collector = c
}

// SetEventHub 注入事件中心
func SetEventHub(h *monitoring.Hub) {
	eventHub = h
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/info", handleInfo)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
	mux.Handle("GET /api/predictions", requireAPIKey(handlePredictions))
	mux.HandleFunc("GET /api/ws/events", handleEvents)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":        "healthy",
		"model_loaded":  detector != nil,
		"scaler_loaded": detector != nil,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

func handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":        "Exoplanet Detection API",
		"model":          "BiLSTM Hybrid",
		"version":        "2.0",
		"authentication": "Required (X-API-Key header)",
		"endpoints": map[string]string{
			"/api/health":        "GET - Health check (public)",
			"/api/info":          "GET - API information (public)",
			"/api/metrics":       "GET - Runtime metrics (public)",
			"/api/predict":       "POST - Predict exoplanet from flux array (requires API key)",
			"/api/predict/batch": "POST - Batch predictions (requires API key)",
			"/api/predict/csv":   "POST - Predict from raw CSV light curve (requires API key)",
			"/api/predictions":   "GET - Recent prediction history (requires API key)",
			"/api/keys/generate": "POST - Generate new API key (requires master key)",
			"/api/ws/events":     "GET - WebSocket prediction event stream (public)",
		},
		"usage": `Include "X-API-Key: your_key_here" in request headers`,
	}
	if metadata != nil {
		info["accuracy"] = fmt.Sprintf("%.2f%%", metadata.TestAccuracy*100)
		info["model_name"] = metadata.ModelName
	}
	respondJSON(w, info)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if collector == nil {
		respondError(w, http.StatusServiceUnavailable, "Metrics not available", "")
		return
	}
	respondJSON(w, collector.Snapshot())
}

func handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := db.RecentPredictions(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	respondJSON(w, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func handleEvents(w http.ResponseWriter, r *http.Request) {
	if eventHub == nil {
		respondError(w, http.StatusServiceUnavailable, "Event stream not available", "")
		return
	}
	eventHub.HandleWS(w, r)
}

// requireAPIKey 包装需要API密钥的处理器
func requireAPIKey(handler http.HandlerFunc) http.Handler {
	return APIKeyMiddleware(func(key string) bool {
		return keystore != nil && keystore.Valid(key)
	})(handler)
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.L().Errorf("failed to encode JSON: %v", err)
	}
}

func respondStatusJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.L().Errorf("failed to encode JSON: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message, hint string) {
	body := map[string]interface{}{"error": message}
	if hint != "" {
		body["message"] = hint
	}
	respondStatusJSON(w, status, body)
}
