package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v2"

	"exoserve/auth"
	"exoserve/db"
	qhttp "exoserve/http"
	"exoserve/logging"
	"exoserve/ml"
	"exoserve/monitoring"
)

type Config struct {
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		RunnerURL      string   `yaml:"runner_url"`
		Name           string   `yaml:"name"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		ArtifactDirs   []string `yaml:"artifact_dirs"`
		ScalerFile     string   `yaml:"scaler_file"`
		MetadataFile   string   `yaml:"metadata_file"`
		CacheSize      int      `yaml:"cache_size"`
	} `yaml:"model"`
	Auth struct {
		KeysFile string `yaml:"keys_file"`
	} `yaml:"auth"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logging.Config `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(config.Log); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Sync()

	// 2. Initialize database
	if err := db.InitDB(config.Database.Path); err != nil {
		logging.L().Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logging.L().Infof("database initialized at %s", config.Database.Path)

	// 3. Load model artifacts and wire services
	keystore := initServices(config)

	// 4. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           config.Http.Port,
		Timeout:        time.Duration(config.Http.TimeoutSeconds) * time.Second,
		MaxBodyBytes:   config.Http.MaxBodyBytes,
		AllowedOrigins: config.Http.AllowedOrigins,
	})
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logging.L().Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.L().Info("shutting down...")

	if err := server.Stop(); err != nil {
		logging.L().Errorf("server forced to shutdown: %v", err)
	}
	if keystore != nil {
		keystore.Close()
	}

	logging.L().Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func initServices(config *Config) *auth.Keystore {
	scalerPath, err := ml.ResolveArtifact(config.Model.ArtifactDirs, artifactName(config.Model.ScalerFile, "scaler.json"))
	if err != nil {
		logging.L().Fatalf("Failed to locate scaler: %v", err)
	}
	scaler, err := ml.LoadScaler(scalerPath)
	if err != nil {
		logging.L().Fatalf("Failed to load scaler: %v", err)
	}
	logging.L().Infof("scaler loaded from %s (%d features)", scalerPath, scaler.NumFeatures())

	// Metadata is optional; serve without accuracy info when missing.
	if metaPath, err := ml.ResolveArtifact(config.Model.ArtifactDirs, artifactName(config.Model.MetadataFile, "metadata.json")); err == nil {
		if meta, err := ml.LoadMetadata(metaPath); err == nil {
			qhttp.SetMetadata(meta)
			logging.L().Infof("metadata loaded: %s accuracy %.2f%%", meta.ModelName, meta.TestAccuracy*100)
		}
	}

	runner := ml.NewRunnerClient(config.Model.RunnerURL, config.Model.Name, time.Duration(config.Model.TimeoutSeconds)*time.Second)
	detector, err := ml.NewDetector(runner, ml.NewPreprocessor(scaler), config.Model.CacheSize)
	if err != nil {
		logging.L().Fatalf("Failed to build detector: %v", err)
	}
	qhttp.SetDetector(detector)

	keystore, err := auth.Open(config.Auth.KeysFile)
	if err != nil {
		logging.L().Fatalf("Failed to open keystore: %v", err)
	}
	if keystore.Count() == 0 {
		initial, err := keystore.Generate()
		if err != nil {
			logging.L().Fatalf("Failed to bootstrap initial API key: %v", err)
		}
		logging.L().Warnf("initial API key generated: %s (send it as the X-API-Key header)", initial)
	}
	if err := keystore.Watch(); err != nil {
		logging.L().Warnf("key file watch disabled: %v", err)
	}
	qhttp.SetKeystore(keystore)
	logging.L().Infof("API keys loaded from %s, %d active", config.Auth.KeysFile, keystore.Count())

	collector := monitoring.NewCollector()
	qhttp.SetCollector(collector)

	hub := monitoring.NewHub()
	go hub.Run()
	qhttp.SetEventHub(hub)

	return keystore
}

func artifactName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
