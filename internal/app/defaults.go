package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "MOMENTS_CONFIG_PATH"
	envHome       = "MOMENTS_HOME"
)

// Paths is the on-disk layout of a moments installation:
//
//	<config>                   moments.toml
//	<home>/log/moments.log     operation log
//	<home>/cache/tokens.db     version tokens per connected repository
//	<home>/session.age         sealed connection and signed-in user
//
// Nothing from the shared repository is kept locally besides the cache.
type Paths struct {
	ConfigPath  string
	BaseDir     string
	LogDir      string
	CacheDir    string
	SessionPath string
}

// GetDefaults resolves Paths. MOMENTS_CONFIG_PATH overrides the config file
// (~/.config/moments.toml) and MOMENTS_HOME the data directory
// (~/.local/share/moments).
func GetDefaults() (Paths, error) {
	configPath, err := fromEnvOrHome(envConfigPath, ".config", "moments.toml")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := fromEnvOrHome(envHome, ".local", "share", "moments")
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		CacheDir:    filepath.Join(baseDir, "cache"),
		SessionPath: filepath.Join(baseDir, "session.age"),
	}, nil
}

func fromEnvOrHome(env string, rel ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, rel...)...), nil
}
