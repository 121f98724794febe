package config

import (
	"os"
	"path/filepath"
)

// Dir returns the autoreply config directory (~/.config/autoreply),
// creating it if needed
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(homeDir, ".config", "autoreply")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// ProfilesDir returns the directory holding the personality profile and
// user instruction files (~/.config/autoreply/profiles)
func ProfilesDir() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}

	profilesDir := filepath.Join(configDir, "profiles")
	if err := os.MkdirAll(profilesDir, 0755); err != nil {
		return "", err
	}

	return profilesDir, nil
}
