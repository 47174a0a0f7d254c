package userconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LastRoute != "" || cfg.LastPortal != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSetters_RoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := SetLastPortal("doctor"); err != nil {
		t.Fatalf("SetLastPortal: %v", err)
	}
	if err := SetLastRoute("/doctor-dashboard"); err != nil {
		t.Fatalf("SetLastRoute: %v", err)
	}

	route, err := GetLastRoute()
	if err != nil || route != "/doctor-dashboard" {
		t.Errorf("GetLastRoute() = %q, %v", route, err)
	}
	portal, err := GetLastPortal()
	if err != nil || portal != "doctor" {
		t.Errorf("GetLastPortal() = %q, %v", portal, err)
	}

	if _, err := os.Stat(filepath.Join(home, ".config", "toxitrace", "config.json")); err != nil {
		t.Errorf("expected config file: %v", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "toxitrace")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
	if err := SetLastRoute("/"); err == nil {
		t.Error("expected SetLastRoute to surface the parse error")
	}
}
