// Package config loads the front-end configuration from the environment.
// The backend endpoint is immutable for the lifetime of a session.
package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Backend BackendConfig
	Upload  UploadConfig
	App     AppConfig
}

// BackendConfig locates the Verba backend API.
type BackendConfig struct {
	BaseURL string
	Port    int
}

// UploadConfig tunes the document upload payloads.
type UploadConfig struct {
	ChunkSize int
}

// AppConfig covers the front-end itself: the tenant partition for the
// persisted title, local data directory, serve-mode port and log level.
type AppConfig struct {
	Tenant   string
	DataDir  string
	Port     int
	LogLevel string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost",
			Port:    8000,
		},
		Upload: UploadConfig{
			ChunkSize: 300,
		},
		App: AppConfig{
			Tenant:   "default_tenant",
			DataDir:  defaultDataDir(),
			Port:     8501,
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "verba-chat-data"
	}
	return filepath.Join(base, "verba-chat")
}

// Load reads configuration from environment variables on top of the
// defaults. Unset variables keep their defaults; unparseable values are
// logged and ignored.
func Load() Config {
	cfg := defaults()
	applyEnvOverrides(&cfg)
	return cfg
}
