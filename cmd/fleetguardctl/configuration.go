package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetguard/fleetguard/pkg/config"
)

// configurationCmd groups the configuration commands
var configurationCmd = &cobra.Command{
	Use:   "configuration",
	Short: "Inspect fleetguard configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// configurationShowCmd represents the configuration show command
var configurationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show fleetguard configuration attributes and their sources",
	Long: `Show fleetguard configuration attributes and their sources.

The values displayed by this command reflect the current state of the
configuration sources, the environment variables and the config file.
The organization policy of a running server may differ once it has been
changed through the API. The approval signing key is masked.

Config file location: /etc/fleetguard/fleetguard.yml (or FLEETGUARD_CONFIG_PATH)

Example:
  fleetguardctl configuration show
  fleetguardctl configuration show --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")

		if err := showConfiguration(output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(configurationCmd)
	configurationCmd.AddCommand(configurationShowCmd)
	configurationShowCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func showConfiguration(output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if output == "json" {
		jsonOutput, err := cfg.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Println(jsonOutput)
		return nil
	}

	fmt.Print(cfg.FormatText())
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nWarning: %v\n", err)
	}
	return nil
}
