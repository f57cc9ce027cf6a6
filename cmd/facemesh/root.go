package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facemesh/internal/config"
	"github.com/teslashibe/go-facemesh/internal/httpc"
	"github.com/teslashibe/go-facemesh/internal/log"
	"github.com/teslashibe/go-facemesh/pkg/debug"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is loaded from the environment, then overridden by flags.
	cfg config.Config

	flagPort        string
	flagLogLevel    string
	flagDebug       bool
	flagDebugFrames bool
)

var rootCmd = &cobra.Command{
	Use:           "facemesh",
	Short:         "Live face landmark overlay for a webcam",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Port = flagPort
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if flags.Changed("debug") {
			cfg.Debug = flagDebug
		}
		if cfg.Debug && !flags.Changed("log-level") {
			cfg.LogLevel = "debug"
		}

		log.InitWithOptions(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		debug.Enabled = cfg.Debug
		debug.Frames = flagDebugFrames
		httpc.UserAgent = "facemesh/" + Version
		return nil
	},
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagPort, "port", config.DefaultPort, "HTTP port for the overlay page (overrides PORT)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable verbose debug logging (overrides DEBUG)")
	pf.BoolVar(&flagDebugFrames, "debug-frames", false, "Log every processed frame")
}
