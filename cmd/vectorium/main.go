package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/config"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/console"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/run"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/scan"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/token"
)

// release is the CLI version, overridden at link time.
var release = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:     "vectorium",
	Short:   "Vectorium: a native plugin host",
	Long:    `Vectorium loads plugin libraries at runtime, ticks them, and connects them through shared services and a typed data bus.`,
	Version: release,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		base.Release = release
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(run.CmdRun)
	rootCmd.AddCommand(scan.CmdScan)
	rootCmd.AddCommand(config.CmdConfig)
	rootCmd.AddCommand(token.CmdToken)
	rootCmd.AddCommand(console.CmdConsole)

	rootCmd.PersistentFlags().StringVarP(&base.ConfigPath, "config", "c", "", "config file (default <exe dir>/config/vectorium.json)")
	rootCmd.PersistentFlags().StringVar(&base.LogLevel, "log-level", "", "log level: debug|info|warn|error (overrides the config file)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
