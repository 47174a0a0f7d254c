package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = "toxitrace"
	configFileName = "config.json"
)

// UserConfig represents the user's local preferences stored in ~/.config/toxitrace/config.json
type UserConfig struct {
	// LastRoute is where the last login, logout or guard redirect went
	LastRoute string `json:"last_route,omitempty"`
	// LastPortal is the portal chosen at the last login
	LastPortal string `json:"last_portal,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// update loads, mutates and saves the config
func update(fn func(*UserConfig)) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	fn(cfg)
	return Save(cfg)
}

// SetLastRoute records the last navigated route
func SetLastRoute(route string) error {
	return update(func(c *UserConfig) { c.LastRoute = route })
}

// GetLastRoute returns the last navigated route, or empty string if not set
func GetLastRoute() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.LastRoute, nil
}

// SetLastPortal records the portal used for the last login
func SetLastPortal(portal string) error {
	return update(func(c *UserConfig) { c.LastPortal = portal })
}

// GetLastPortal returns the last login portal, or empty string if not set
func GetLastPortal() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.LastPortal, nil
}
