package config

import (
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Dispatch.DefaultSession == "" {
		t.Fatal("default session missing")
	}
	if _, ok := cfg.Dispatch.Routes["claude"]; !ok {
		t.Fatal("default routes missing claude")
	}
}

func TestFromYAMLRejectsBadCleanupPolicy(t *testing.T) {
	_, err := FromYAML([]byte(`
dispatch:
  default_session: s
  cleanup_policy: purge
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Notifications.Enabled {
		t.Fatal("expected default notifications enabled")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	cfg := Default()
	cfg.Notifications.Enabled = false
	cfg.Dispatch.CallbackSecret = "s3cret"
	if err := Save(workspace, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(workspace)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Notifications.Enabled {
		t.Fatal("enabled flag not persisted")
	}
	if loaded.Dispatch.CallbackSecret != "s3cret" {
		t.Fatalf("callback secret = %q", loaded.Dispatch.CallbackSecret)
	}
}
