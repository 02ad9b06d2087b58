package config

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const configFileName = "chunkd"

// Config holds the worker's configuration options.
type Config struct {
	// DataDir is where chunk payloads live.
	DataDir string `yaml:"dataDir,omitempty"`
	// SnapshotPath is the registry snapshot table file.
	SnapshotPath string `yaml:"snapshotPath,omitempty"`
	// JournalPath is the task journal database.
	JournalPath string `yaml:"journalPath,omitempty"`

	MaxConcurrentTransfers int           `yaml:"maxConcurrentTransfers,omitempty"`
	TransferTimeout        time.Duration `yaml:"transferTimeout,omitempty"`
	// SimulatedTransferDelay is the artificial latency of the local transport.
	SimulatedTransferDelay time.Duration `yaml:"simulatedTransferDelay,omitempty"`

	Debug   bool   `yaml:"debug,omitempty"`
	LogPath string `yaml:"logPath,omitempty"`
}

// GetConfig reads the configuration file and returns a Config. A missing or
// empty file yields the defaults; individual zero values fall back field by
// field.
func GetConfig() (*Config, error) {
	configFilePath := filepath.Join(xdg.ConfigHome, configFileName)
	defaults := DefaultConfig()

	b, err := os.ReadFile(configFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &defaults, nil
		}

		return nil, err
	}

	if len(b) == 0 {
		return &defaults, nil
	}

	var cfg Config

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return &Config{
		DataDir:                zeroOr(cfg.DataDir, defaults.DataDir),
		SnapshotPath:           zeroOr(cfg.SnapshotPath, defaults.SnapshotPath),
		JournalPath:            zeroOr(cfg.JournalPath, defaults.JournalPath),
		MaxConcurrentTransfers: zeroOr(cfg.MaxConcurrentTransfers, defaults.MaxConcurrentTransfers),
		TransferTimeout:        zeroOr(cfg.TransferTimeout, defaults.TransferTimeout),
		SimulatedTransferDelay: zeroOr(cfg.SimulatedTransferDelay, defaults.SimulatedTransferDelay),
		Debug:                  zeroOr(cfg.Debug, defaults.Debug),
		LogPath:                zeroOr(cfg.LogPath, defaults.LogPath),
	}, nil
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
