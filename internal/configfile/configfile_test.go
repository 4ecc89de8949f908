package configfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, "projects", "abc123")

	cfg := &Config{
		ProjectID: "abc123",
		RootPath:  "/home/user/src/widget",
		CreatedTS: "2026-08-26T10:00:00Z",
	}

	if err := cfg.Save(projectDir); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if loaded == nil {
		t.Fatal("Load() returned nil config")
	}

	if loaded.ProjectID != cfg.ProjectID {
		t.Errorf("ProjectID = %q, want %q", loaded.ProjectID, cfg.ProjectID)
	}

	if loaded.RootPath != cfg.RootPath {
		t.Errorf("RootPath = %q, want %q", loaded.RootPath, cfg.RootPath)
	}

	if loaded.CreatedTS != cfg.CreatedTS {
		t.Errorf("CreatedTS = %q, want %q", loaded.CreatedTS, cfg.CreatedTS)
	}
}

func TestLoadNonexistent(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() returned error for nonexistent metadata: %v", err)
	}

	if cfg != nil {
		t.Errorf("Load() = %v, want nil for nonexistent metadata", cfg)
	}
}

func TestLoadMigratesLegacyFile(t *testing.T) {
	tmpDir := t.TempDir()

	legacy := `{"project_id":"legacy42","root_path":"/old/root"}`
	if err := os.WriteFile(filepath.Join(tmpDir, "project.json"), []byte(legacy), 0600); err != nil {
		t.Fatalf("writing legacy file: %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil config")
	}
	if loaded.ProjectID != "legacy42" {
		t.Errorf("ProjectID = %q, want legacy42", loaded.ProjectID)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Errorf("expected migrated %s to exist: %v", ConfigFileName, err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "project.json")); !os.IsNotExist(err) {
		t.Errorf("expected legacy project.json to be removed, stat err = %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	projectDir := "/home/user/.mi/projects/abc123"
	got := ConfigPath(projectDir)
	want := filepath.Join(projectDir, "metadata.json")

	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}
