package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/registry"
	"github.com/Tayyab-Ali-786/Chattify/internal/relay"
	"github.com/Tayyab-Ali-786/Chattify/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveOpts config.ServerOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the relay that introduces participants and forwards their
signaling messages. Set REDIS_ADDR (or --redis) to mirror room presence
into Redis.

Examples:
  chattify serve
  chattify serve --port 9000 --redis localhost:6379`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(serveOpts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := registry.New()
	if cfg.Redis.Enabled() {
		mirror, err := registry.NewRedisMirror(ctx, registry.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer mirror.Close()
		reg.SetMirror(mirror)
		slog.Info("mirroring presence to redis", "addr", cfg.Redis.Addr)
	}

	hub := relay.NewHub(reg)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           relay.NewRouter(hub, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", srv.Addr, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()
	ui.PrintSuccessf("Relay listening on %s", srv.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down relay")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.Port, "port", "", "Port to listen on")
	serveCmd.Flags().StringVar(&serveOpts.RedisAddr, "redis", "", "Redis address for the presence mirror")
}
