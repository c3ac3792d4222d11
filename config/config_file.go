package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// configFileEnv names an explicit YAML config file. Without it LoadConfig
// looks for config/config.<environment>.yaml and skips it when absent.
const configFileEnv = "CONFIG_FILE"

// configFilePath returns the file to merge and whether it was asked for
// explicitly, in which case a missing file is an error.
func configFilePath(environment string) (string, bool) {
	if path := os.Getenv(configFileEnv); path != "" {
		return path, true
	}
	dir := "config"
	if os.Getenv("CONTAINER") == "true" {
		dir = "/app/config"
	}
	return filepath.Join(dir, fmt.Sprintf("config.%s.yaml", environment)), false
}

// mergeConfigFile layers a YAML file between the defaults and the
// environment. Keys use the same section names as the env bindings, in
// any case, e.g. duplicate_detection.similarity_threshold.
func mergeConfigFile(v *viper.Viper) (string, error) {
	path, explicit := configFilePath(v.GetString("SERVER.ENVIRONMENT"))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return "", fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return path, nil
}
