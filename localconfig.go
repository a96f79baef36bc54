package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	DefaultEpochMinutes = 60
	DefaultMetricsAddr  = ":9100"
)

// NodeConfig is the per-node configuration the daemon works from.  It's written by init and
// can be edited by hand - the daemon re-reads it every epoch.
type NodeConfig struct {
	// Owner is the account the daemon issues rewards as.  Its mnemonic must be loaded.
	Owner        string `json:"owner"`
	EpochMinutes int    `json:"epochMinutes"`
	MetricsAddr  string `json:"metricsAddr"`
}

func (c *NodeConfig) validate() error {
	if _, err := types.DecodeAddress(c.Owner); err != nil {
		return fmt.Errorf("invalid owner address in node config: %w", err)
	}
	if c.EpochMinutes <= 0 {
		return fmt.Errorf("epoch minutes must be positive, got %d", c.EpochMinutes)
	}
	return nil
}

// ConfigDir returns (creating if needed) the tokenfarm directory under the user config dir.
func ConfigDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cfgDir, "tokenfarm")
	err = os.MkdirAll(dir, 0775) // user+group RWX, others RX
	if err != nil {
		return "", fmt.Errorf("error making directory:%s, error:%w", dir, err)
	}
	return dir, nil
}

func ConfigFilename() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "farm.json"), nil
}

func SaveNodeConfig(cfg *NodeConfig) error {
	// Save into a temp file first, replacing the config file only if successfully written.
	cfgName, err := ConfigFilename()
	if err != nil {
		return err
	}
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(cfg)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving configuration: %w", err)
	}

	err = temp.Close()
	if err != nil {
		return err
	}

	err = os.Rename(temp.Name(), cfgName)
	if err != nil {
		return err
	}
	slog.Info("node config saved", "file", cfgName)
	return nil
}

// LoadNodeConfig reads the node config, filling defaults for unset fields.
func LoadNodeConfig() (*NodeConfig, error) {
	cfgName, err := ConfigFilename()
	if err != nil {
		return nil, err
	}
	file, err := os.Open(cfgName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := NodeConfig{EpochMinutes: DefaultEpochMinutes}
	err = json.NewDecoder(file).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", cfgName, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func nodeConfigExists() bool {
	cfgName, err := ConfigFilename()
	if err != nil {
		return false
	}
	_, err = os.Stat(cfgName)
	return !errors.Is(err, os.ErrNotExist)
}
