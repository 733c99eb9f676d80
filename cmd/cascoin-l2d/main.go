// Command cascoin-l2d runs a Cascoin L2 node.
//
// Usage:
//
//	cascoin-l2d [flags]
//
// Flags:
//
//	--datadir        Data directory path (default: cascoin-l2-data)
//	--network        Network: mainnet, testnet, regtest (default: mainnet)
//	--memdb          Keep the store in memory, nothing touches disk
//	--sequencer-key  Hex private key to register as a sequencer
//	--fee-collector  Hex address that accumulates transaction fees
//	--loglevel       Log level: debug, info, warn, error (default: info)
//	--version        Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cascoin/cascoin-l2/log"
	"github.com/cascoin/cascoin-l2/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	fs := flag.NewFlagSet("cascoin-l2d", flag.ContinueOnError)
	defaults := node.DefaultConfig()

	cfg := node.Config{Name: defaults.Name}
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "data directory path")
	fs.StringVar(&cfg.Network, "network", defaults.Network, "network: mainnet, testnet, regtest")
	fs.BoolVar(&cfg.MemoryDB, "memdb", false, "keep the store in memory")
	fs.StringVar(&cfg.SequencerKeyHex, "sequencer-key", "", "hex private key to register as a sequencer")
	fs.StringVar(&cfg.FeeCollector, "fee-collector", "", "hex address that accumulates fees")
	fs.StringVar(&cfg.LogLevel, "loglevel", defaults.LogLevel, "log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Printf("cascoin-l2d %s (%s)\n", version, commit)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	n, err := node.New(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create node: %v\n", err)
		return 1
	}
	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start node: %v\n", err)
		return 1
	}
	chain := cfg.ChainParams()
	log.Info("cascoin-l2d started", "version", version,
		"network", chain.Name, "chainID", chain.ChainID,
		"datadir", cfg.DataDir, "memdb", cfg.MemoryDB)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	if err := n.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "stop node: %v\n", err)
		return 1
	}
	return 0
}
