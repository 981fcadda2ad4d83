package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httphandler "github.com/promovista/app/internal/http"
	"github.com/promovista/app/internal/http/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var servePort string

// serveCmd exposes the app over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the app state and screen actions over HTTP",
	Long: `Starts an HTTP shell around the client. GET /state returns the current
screen and alerts; POST /login, /otp/verify, /otp/resend, /profile,
/signout and /back drive the screen on top of the stack.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, "")
	if err != nil {
		return err
	}
	defer rt.Close()

	port := rt.cfg.Port
	if servePort != "" {
		port = servePort
	}

	ipLimiter := httphandler.NewIPLimiter()
	phoneLimiter := handlers.NewPhoneLimiter()
	appHandler := handlers.NewAppHandler(rt.app, phoneLimiter, rt.log.Named("http"))
	router := httphandler.NewRouter(appHandler, rt.sessions, ipLimiter)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return rt.client.Run(gctx, refreshInterval)
	})
	g.Go(func() error {
		return ipLimiter.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		return phoneLimiter.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.log.Info("shutting down server")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	rt.log.Info("server exited")
	return nil
}
