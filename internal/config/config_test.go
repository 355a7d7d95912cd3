package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Backend.BaseURL != "http://localhost" {
		t.Errorf("Backend.BaseURL = %q, want http://localhost", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Port != 8000 {
		t.Errorf("Backend.Port = %d, want 8000", cfg.Backend.Port)
	}
	if cfg.Upload.ChunkSize != 300 {
		t.Errorf("Upload.ChunkSize = %d, want 300", cfg.Upload.ChunkSize)
	}
	if cfg.App.Tenant != "default_tenant" {
		t.Errorf("App.Tenant = %q, want default_tenant", cfg.App.Tenant)
	}
	if cfg.App.Port != 8501 {
		t.Errorf("App.Port = %d, want 8501", cfg.App.Port)
	}
	if cfg.App.LogLevel != "info" {
		t.Errorf("App.LogLevel = %q, want info", cfg.App.LogLevel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VERBA_BASE_URL", "http://verba.internal")
	t.Setenv("VERBA_PORT", "9000")
	t.Setenv("CHUNK_SIZE", "150")
	t.Setenv("WEAVIATE_TENANT", "acme")
	t.Setenv("VERBA_CHAT_DATA_DIR", "/tmp/verba-chat-test")
	t.Setenv("VERBA_CHAT_PORT", "9501")
	t.Setenv("VERBA_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.Backend.BaseURL != "http://verba.internal" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Port != 9000 {
		t.Errorf("Backend.Port = %d, want 9000", cfg.Backend.Port)
	}
	if cfg.Upload.ChunkSize != 150 {
		t.Errorf("Upload.ChunkSize = %d, want 150", cfg.Upload.ChunkSize)
	}
	if cfg.App.Tenant != "acme" {
		t.Errorf("App.Tenant = %q, want acme", cfg.App.Tenant)
	}
	if cfg.App.DataDir != "/tmp/verba-chat-test" {
		t.Errorf("App.DataDir = %q", cfg.App.DataDir)
	}
	if cfg.App.Port != 9501 {
		t.Errorf("App.Port = %d, want 9501", cfg.App.Port)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("App.LogLevel = %q, want debug", cfg.App.LogLevel)
	}
}

func TestLoad_BadIntegerKeepsDefault(t *testing.T) {
	t.Setenv("VERBA_PORT", "not-a-port")

	cfg := Load()
	if cfg.Backend.Port != 8000 {
		t.Errorf("Backend.Port = %d, want the default 8000 for an unparseable override", cfg.Backend.Port)
	}
}

func TestLoad_EmptyEnvIgnored(t *testing.T) {
	t.Setenv("VERBA_BASE_URL", "")

	cfg := Load()
	if cfg.Backend.BaseURL != "http://localhost" {
		t.Errorf("Backend.BaseURL = %q, want the default for an empty override", cfg.Backend.BaseURL)
	}
}
