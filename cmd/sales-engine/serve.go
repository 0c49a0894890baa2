package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/api"
	"github.com/astropanel/sales-engine/engine"
)

var (
	servePort     int
	serveScenario string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API",
	Long:  "Serves payroll, attribution, audit and funnel views over HTTP and refreshes them on the configured interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		options, err := engineOptions("")
		if err != nil {
			return err
		}
		rec := engine.NewRecomputer(st, options, zap.L())
		handler := api.NewHandler(st, rec, zap.L())

		if serveScenario != "" {
			if err := handler.SeedScenario(ctx, serveScenario); err != nil {
				return err
			}
		}

		scheduler := api.NewRefreshScheduler(rec, cfg.Refresh.Interval, zap.L())
		startRefresh(ctx, scheduler)
		defer scheduler.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      api.NewRouter(handler),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startRefresh publishes the first state before the server accepts requests,
// then hands over to the ticker when one is configured.
func startRefresh(ctx context.Context, rs *api.RefreshScheduler) {
	rs.RunNow(ctx)
	rs.Start()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveScenario, "scenario", "", "load a demo scenario before serving")
	rootCmd.AddCommand(serveCmd)
}
