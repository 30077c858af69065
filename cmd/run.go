package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/judge-sync/internal/api"
	"github.com/JakeFAU/judge-sync/internal/shell"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// newRunCmd creates the 'run' subcommand: the dispatcher, the HTTP API and
// the interactive shell in one process.
func newRunCmd() *cobra.Command {
	var noShell bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the sync service",
		Long: `Starts the task dispatcher and, unless server.port is 0, the HTTP API.
Commands are read from stdin until 'exit'. With --no-shell the service runs
until it receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, noShell)
		},
	}
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "do not read commands from stdin")
	return cmd
}

func runService(cmd *cobra.Command, noShell bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("dispatcher started")
		if err := appInstance.Run(gctx); err != nil {
			return fmt.Errorf("run dispatcher: %w", err)
		}
		return nil
	})

	if cfg.Server.Port > 0 {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(appInstance.Service(), logger).Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		g.Go(func() error {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if noShell {
			<-gctx.Done()
			return nil
		}
		return shell.New(appInstance.Service(), cmd.InOrStdin(), cmd.OutOrStdout(), logger).Run(gctx)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
