// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Command capweb serves a web application whose protected pages require an
// OIDC login.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/hashicorp/capweb/config"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		logLevel string
		logJSON  bool
	)
	cmd := &cobra.Command{
		Use:          "capweb",
		Short:        "Serve a web application with an OIDC login",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("log-level") && !slices.Contains(config.LogLevels, logLevel) {
				return fmt.Errorf("invalid --log-level %q: must be one of %s", logLevel, strings.Join(config.LogLevels, ", "))
			}
			cfg, err := config.Load(config.WithEnvFile(envFile))
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid configuration: %s\n", err)
				return err
			}
			if cmd.Flags().Changed("log-level") {
				if err := cfg.SetLogLevel(logLevel); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("log-json") {
				cfg.LogJSON = logJSON
			}
			logger := hclog.New(&hclog.LoggerOptions{
				Name:       "capweb",
				Level:      cfg.Level(),
				Output:     cmd.OutOrStdout(),
				JSONFormat: cfg.LogJSON,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("server stopped", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.SetContext(context.Background())
	cmd.Flags().StringVar(&envFile, "env-file", "", "file of environment variables to load (default .env when present)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "log in JSON")
	return cmd
}
