package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/audit"
	"github.com/trii-invest/insightd/internal/contextserver"
	"github.com/trii-invest/insightd/internal/orchestrator"
	"github.com/trii-invest/insightd/internal/profiles"
	"github.com/trii-invest/insightd/internal/server"
	"github.com/trii-invest/insightd/internal/vectordb"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long:  `Starts the insightd REST API, the recommendation websocket, /healthz and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		}, a.logger.Named("http"))

		registerAllRoutes(srv, a)

		go func() {
			<-ctx.Done()
			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("shutdown", zap.Error(err))
			}
		}()

		a.logger.Info("insightd starting",
			zap.String("version", Version),
			zap.String("addr", srv.Addr()),
			zap.String("database", a.db.Path()),
			zap.Int("backends", len(cfg.Backends)),
			zap.Bool("research_notes", a.notes != nil),
		)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	},
}

func registerAllRoutes(srv *server.Server, a *app) {
	api := srv.API()

	contextserver.RegisterRoutes(api, a.contexts)
	orchestrator.RegisterRoutes(api, a.orch)
	audit.RegisterRoutes(api, a.audit)
	profiles.RegisterRoutes(api, a.profiles)
	if a.notes != nil {
		vectordb.RegisterRoutes(api, a.notes)
	}

	// The socket is long-lived and must not sit behind the request timeout.
	server.RegisterRecommendationSocket(srv.Router(), a.orch, a.logger.Named("ws"))
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
