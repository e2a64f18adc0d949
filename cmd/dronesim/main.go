package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/farmassist/dronesim/internal/config"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"
)

// SessionStartTime names the session's log and dump files.
var SessionStartTime time.Time = time.Now()

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configDir string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:          "dronesim",
		Short:        "Farm drone flight and mission simulator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd, configDir, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory containing "+config.FileName)
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logLevel (debug, info, warn, error)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(runCmd())
	cmd.AddCommand(zonesCmd())
	cmd.AddCommand(flightsCmd())
	cmd.AddCommand(uploadCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// loadConfig reads the config file. A missing file is not fatal: defaults
// and DRONESIM_* environment overrides still apply.
func loadConfig(cmd *cobra.Command, dir, logLevel string) error {
	viper.Reset()
	if err := config.Load(dir); err != nil {
		if !config.IsNotFound(err) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config, using defaults! (%v)\n", err)
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dronesim %s (built %s)\n", CurrentVersion, BuildDate)
			return nil
		},
	}
}
