package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vipguy/Bing4/internal/mockapi"
)

type mockServerOptions struct {
	addr          string
	steps         int
	failingStyles []string
	anyCookie     bool
}

// NewMockServerCmd creates the mock-server command
func NewMockServerCmd() *cobra.Command {
	opts := &mockServerOptions{}

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory Pixel backend",
		Long: `Run an in-memory backend that speaks the Pixel HTTP API. Sessions advance
by --steps images every time their status is read, so the client's polling
drives progress. No images are really generated.

Examples:
  bing4 mock-server
  bing4 mock-server --addr :9000 --steps 2 --fail-style noir`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockServer(cmd.Context(), opts, nil)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8001", "Listen address")
	cmd.Flags().IntVar(&opts.steps, "steps", 1, "Images finished per status read")
	cmd.Flags().StringArrayVar(&opts.failingStyles, "fail-style", nil, "Style whose images fail (repeatable)")
	cmd.Flags().BoolVar(&opts.anyCookie, "accept-any-cookie", false, "Treat every auth token as valid")

	return cmd
}

// runMockServer serves until SIGINT/SIGTERM or ctx ends. When ready is
// non-nil it receives the bound address once the listener is open.
func runMockServer(ctx context.Context, opts *mockServerOptions, ready chan<- string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	mopts := mockapi.Options{
		StepsPerFetch: opts.steps,
		FailingStyles: opts.failingStyles,
		Logger:        logger,
	}
	if opts.anyCookie {
		mopts.CookieValid = func(string) bool { return true }
	}

	srv := &http.Server{
		Handler:      mockapi.New(mopts).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
