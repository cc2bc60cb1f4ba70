package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string       `json:"serverAddress"`
	DatabasePath  string       `json:"databasePath"`
	DatabaseURL   string       `json:"databaseUrl"`
	PhotoStorage  PhotoStorage `json:"photoStorage"`
	Security      Security     `json:"security"`
}

// UsePostgres returns true if PostgreSQL should be used for the roster
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// PhotoStorage configuration for team photo persistence
type PhotoStorage struct {
	BasePath      string `json:"basePath"`
	MaxFileSizeMB int64  `json:"maxFileSizeMB"`
	MaxEdgePixels int    `json:"maxEdgePixels"`
}

// Security configuration for the host control boundary
type Security struct {
	HostKey       string `json:"hostKey"`
	HostKeyHeader string `json:"hostKeyHeader"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":4310",
		DatabasePath:  "quizrelay.db",
		PhotoStorage: PhotoStorage{
			BasePath:      "./team-photos",
			MaxFileSizeMB: 8,
			MaxEdgePixels: 1280,
		},
		Security: Security{
			HostKey:       "CHANGE_THIS_TO_A_SECURE_HOST_KEY",
			HostKeyHeader: "X-Host-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("PHOTO_STORAGE_PATH"); basePath != "" {
		cfg.PhotoStorage.BasePath = basePath
	}
	if hostKey := os.Getenv("HOST_API_KEY"); hostKey != "" {
		cfg.Security.HostKey = hostKey
	}
	if maxSize := os.Getenv("PHOTO_MAX_SIZE_MB"); maxSize != "" {
		if mb, err := strconv.ParseInt(maxSize, 10, 64); err == nil && mb > 0 {
			cfg.PhotoStorage.MaxFileSizeMB = mb
		}
	}
	if maxEdge := os.Getenv("PHOTO_MAX_EDGE_PIXELS"); maxEdge != "" {
		if px, err := strconv.Atoi(maxEdge); err == nil && px > 0 {
			cfg.PhotoStorage.MaxEdgePixels = px
		}
	}

	// Ensure photo storage directory exists
	if err := os.MkdirAll(cfg.PhotoStorage.BasePath, 0755); err != nil {
		return nil, err
	}

	// Make base path absolute
	absPath, err := filepath.Abs(cfg.PhotoStorage.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.PhotoStorage.BasePath = absPath

	return cfg, nil
}
