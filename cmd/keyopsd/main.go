package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/systmms/keyops/cmd/keyopsd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Wipe every protected buffer (the PKCS #11 PIN among them) on the
	// way out, whatever the exit path.
	defer memguard.Purge()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "keyopsd",
		Short: "Multi-tenant key management and cryptographic operation service",
		Long: `keyopsd dispatches cryptographic operation requests to pluggable
providers (in-process software, PKCS #11 tokens) over a framed socket
protocol, with per-application key namespaces.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "keyopsd.yaml", "Config file path")

	rootCmd.AddCommand(commands.NewServeCommand(&configFile))
	rootCmd.AddCommand(commands.NewValidateCommand(&configFile))

	return rootCmd.Execute()
}
