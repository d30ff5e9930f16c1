package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/sydney/logger"
)

var (
	configPath   string
	verbose      bool
	metricsAddr  string
	otlpEndpoint string
	colorMode    string
)

var rootCmd = &cobra.Command{
	Use:          "sydney",
	Short:        "Command line client for the Bing chat service",
	Version:      GetVersion(),
	SilenceUsage: true,
	Long: `sydney talks to the Bing chat service from the terminal.

It authenticates with the _U cookie of a signed-in browser session, read from
the configuration file, a cookie file, or the BING_U_COOKIE environment variable.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("verbose") {
			v, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			logger.SetVerbose(v)
		}
		return configureColor(colorMode, os.Stdout)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flags.StringVar(&otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/HTTP endpoint")
	flags.StringVar(&colorMode, "color", colorAuto, "Colour output: auto, always or never")
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
