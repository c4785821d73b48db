package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sign/internal/config"
)

// Run modes
const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

var flagConfPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sercha-sign",
		Short:         "Document signing workflow service",
		Long:          "Runs the signing API, the notification worker, or both. Without a subcommand the mode comes from RUN_MODE.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd.Context(), "")
		},
	}
	root.PersistentFlags().StringVarP(&flagConfPath, "config", "c", "", "path to a TOML configuration file")

	root.AddCommand(
		newModeCmd(modeAPI, "Serve the HTTP API only"),
		newModeCmd(modeWorker, "Deliver notifications only"),
		newModeCmd(modeAll, "Serve the HTTP API and deliver notifications"),
		newVersionCmd(),
	)
	return root
}

func newModeCmd(mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd.Context(), mode)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("sercha-sign " + version)
		},
	}
}

// runMode loads configuration and runs until SIGINT or SIGTERM. An empty
// mode falls back to the configured one.
func runMode(parent context.Context, mode string) error {
	cfg, err := config.Load(flagConfPath)
	if err != nil {
		return err
	}
	if mode == "" {
		mode = cfg.Mode
	}
	switch mode {
	case modeAPI, modeWorker, modeAll:
	default:
		return fmt.Errorf("unknown mode %q (use: api, worker, or all)", mode)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, mode)
}
