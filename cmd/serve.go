package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/api"
	"github.com/Shamim-Fav/lvmh/internal/cache"
	"github.com/Shamim-Fav/lvmh/internal/store/memory"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the harvest API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			server := api.NewServer(
				a.harvester,
				memory.NewRunStore(),
				cache.New(a.cfg.CacheTTL(), a.clock),
				a.normalizer,
				a.progress,
				a.clock,
				a.cfg,
				a.logger.Named("api"),
			)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("api server listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("serve: %w", err)
			case <-cmd.Context().Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}
