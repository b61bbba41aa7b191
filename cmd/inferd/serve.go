package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/app"
	"inferd/internal/config"
	"inferd/internal/httpapi"
)

func buildServeCmd() *cobra.Command {
	var (
		cfgPath     string
		addr        string
		catalogPath string
		artifactDir string
		workers     int
		logLevel    string
		required    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags and environment override the config file.
			if v := os.Getenv("INFERD_ADDR"); v != "" && addr == "" {
				addr = v
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if catalogPath != "" {
				cfg.CatalogPath = catalogPath
			}
			if artifactDir != "" {
				cfg.ArtifactDir = artifactDir
			}
			if workers > 0 {
				cfg.WorkerPoolSize = workers
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if required != "" {
				cfg.RequiredTypes = splitCSV(required)
			}
			cfg.Normalize()

			lvl, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				lvl = zerolog.InfoLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(lvl).With().Timestamp().Logger()

			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("close failed")
				}
			}()

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)
			httpapi.SetLogger(log)
			httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins)

			srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(a)}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("catalog", cfg.CatalogPath).Msg("inferd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}
			log.Info().Msg("shutting down")
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.yaml/.json/.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the model catalog file")
	cmd.Flags().StringVar(&artifactDir, "artifact-dir", "", "Directory for fetched model artifacts")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size for model invocations")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	cmd.Flags().StringVar(&required, "required-types", "", "Comma-separated model types required for readiness")
	return cmd
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
