package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Metadata carries the facts recorded at training time.
type Metadata struct {
	ModelName    string  `json:"model_name"`
	TestAccuracy float64 `json:"test_accuracy"`
	NumFeatures  int     `json:"num_features"`
	TrainedAt    string  `json:"trained_at"`
}

func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// ResolveArtifact probes the candidate directories for a model artifact
// and returns the first path that exists. The search order mirrors how
// the artifacts are laid out in deployments: an explicit directory list
// from config, then ./model_files, then the working directory.
func ResolveArtifact(dirs []string, name string) (string, error) {
	candidates := append([]string(nil), dirs...)
	candidates = append(candidates, "model_files", ".")

	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("artifact %s not found in %v", name, candidates)
}
