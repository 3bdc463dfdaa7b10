package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sqlundo/internal/api"
)

// DefaultAddr is the listen address when neither --addr nor the config sets one.
const DefaultAddr = "127.0.0.1:8080"

const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history HTTP API",
		Long: `Serve undo, redo, group and tracking operations over HTTP, plus Prometheus
metrics at /metrics. Stops gracefully on SIGINT or SIGTERM.

Examples:
  sqlundo serve --db ./app.db
  sqlundo serve --db ./app.db --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default "+DefaultAddr+")")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	addr := opts.Addr
	if addr == "" {
		addr = opts.config.Serve.Addr
	}
	if addr == "" {
		addr = DefaultAddr
	}

	engine, closeFn, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	handler := api.NewHandler(engine, opts.logger)
	router := api.NewRouter(handler, api.Options{AllowedOrigins: opts.config.Serve.AllowedOrigins})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", addr), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", opts.databasePath(), ln.Addr())
	if err := serveHTTP(ctx, &http.Server{Handler: router}, ln); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}

// serveHTTP serves on ln until ctx is done, then shuts srv down, waiting up
// to shutdownTimeout for in-flight requests.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
