package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
)

// NewValidateCommand builds the validate subcommand, which parses and
// checks the configuration without starting the service.
func NewValidateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", *configFile)
			if cfg.Providers.Software.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "  provider: software")
			}
			if cfg.Providers.Pkcs11.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "  provider: pkcs11 (library %s, slot %d)\n",
					cfg.Providers.Pkcs11.LibraryPath, cfg.Providers.Pkcs11.SlotNumber)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  key info store: %s\n", cfg.Store.Type)
			return nil
		},
	}
}
