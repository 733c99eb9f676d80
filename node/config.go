// Package node wires the L2 subsystems into a runnable node: state,
// sequencer registry and consensus, block validation, the burn/mint
// bridge, fraud proofs, reorg recovery, and rate limiting.
package node

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cascoin/cascoin-l2/params"
)

// Config holds all configuration for an L2 node.
type Config struct {
	// DataDir is the root directory for all data storage.
	DataDir string

	// Name is a human-readable node identifier (used in logs).
	Name string

	// Network selects the L2 network (mainnet, testnet, regtest).
	Network string

	// MemoryDB keeps the key-value store in memory instead of on disk.
	MemoryDB bool

	// SequencerKeyHex is the node's sequencer private key. Empty for a
	// non-sequencing node.
	SequencerKeyHex string

	// FeeCollector is the hex address that accumulates transaction fees.
	FeeCollector string

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  "cascoin-l2-data",
		Name:     "cascoin-l2",
		Network:  "mainnet",
		LogLevel: "info",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" && !c.MemoryDB {
		return errors.New("config: datadir must not be empty")
	}
	switch c.Network {
	case "mainnet", "testnet", "regtest":
	default:
		return fmt.Errorf("config: unknown network %q", c.Network)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// ChainParams returns the parameter set for the configured network.
func (c *Config) ChainParams() *params.L2Params {
	switch c.Network {
	case "testnet":
		return params.TestnetParams()
	case "regtest":
		return params.RegtestParams()
	default:
		return params.MainnetParams()
	}
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// DBPath returns the key-value store directory.
func (c *Config) DBPath() string {
	return c.ResolvePath("chaindata")
}
