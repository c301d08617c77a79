package http

import (
	"encoding/json"
	"net/http"
	"time"
)

func RegisterKeyHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/keys/generate", handleGenerateKey)
}

// handleGenerateKey 用主密钥换取新密钥。任何在册密钥都可以充当主密钥。
func handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	if keystore == nil {
		respondError(w, http.StatusServiceUnavailable, "Keystore not available", "")
		return
	}

	var req struct {
		MasterKey string `json:"master_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}
	if req.MasterKey == "" || !keystore.Valid(req.MasterKey) {
		respondError(w, http.StatusForbidden, "Invalid or missing master key", "")
		return
	}

	key, err := keystore.Generate()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	respondStatusJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "New API key generated",
		"api_key":    key,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}
