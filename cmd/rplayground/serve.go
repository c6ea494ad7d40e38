package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zygi/r-playground-mcp/mcpserver"
	"github.com/zygi/r-playground-mcp/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve R sessions over MCP on stdio",
	Long: `Serve the playground to Model Context Protocol clients on stdio.

The server exposes one tool, execute_r_command, which runs R code in a
named session and returns its output, errors and any plots the code wrote
through the plot helper. Sessions persist between calls until deleted or
evicted after the idle timeout.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	factory, cleanup, err := buildFactory(cmd, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	manager := session.NewManager(factory, managerOptions(cfg)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(manager, cfg.SupportImageOutput, version)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
