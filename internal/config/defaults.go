package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	maxConcurrentTransfers = 4
	transferTimeout        = 5 * time.Minute
	simulatedTransferDelay = 100 * time.Millisecond
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	stateDir := filepath.Join(xdg.DataHome, configFileName)

	return Config{
		DataDir:                filepath.Join(stateDir, "data"),
		SnapshotPath:           filepath.Join(stateDir, "snapshot.csv"),
		JournalPath:            filepath.Join(stateDir, "journal.db"),
		MaxConcurrentTransfers: maxConcurrentTransfers,
		TransferTimeout:        transferTimeout,
		SimulatedTransferDelay: simulatedTransferDelay,
	}
}
