package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/promovista/app/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// defaultTUILog keeps logs off the terminal the client draws on
const defaultTUILog = ".promovista/client.log"

// tuiCmd starts the terminal client
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the terminal client",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(defaultTUILog), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	rt, err := setup(ctx, defaultTUILog)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.client.Run(gctx, refreshInterval)
	})
	g.Go(func() error {
		// quitting the client stops the refresher
		defer cancel()
		return tui.Run(gctx, rt.app)
	})
	return g.Wait()
}
