package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"p9e.in/siteprogress/config"
	"p9e.in/siteprogress/handlers"
	"p9e.in/siteprogress/pkg/metrics"
	"p9e.in/siteprogress/pkg/submission"
	"p9e.in/siteprogress/pkg/vision"
	"p9e.in/siteprogress/routes"
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
	_ = a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

// analyzer picks the configured analysis backend. Gemini without a key
// falls back to the offline analyzer so submissions still go through.
func (a *app) analyzer() (vision.Analyzer, error) {
	cfg := a.settings.Analysis
	if cfg.Provider != config.ProviderGemini {
		return vision.OfflineAnalyzer{}, nil
	}
	if cfg.APIKey == "" {
		a.log.Warn("no analysis API key configured, using the offline analyzer")
		return vision.OfflineAnalyzer{}, nil
	}
	return vision.NewGeminiClient(vision.GeminiOptions{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		RetryCount: 2,
	}, a.log)
}

func (a *app) serve(ctx context.Context) error {
	db, st, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := config.SeedAdmin(db, a.settings.Admin, a.log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	analyzer, err := a.analyzer()
	if err != nil {
		return fmt.Errorf("analysis client: %w", err)
	}

	pipeline := submission.NewPipeline(st, analyzer, a.settings.Analysis.Timeout, m, a.log)
	h := handlers.New(handlers.Deps{
		Store:          st,
		Pipeline:       pipeline,
		Drafts:         submission.NewRegistry(a.settings.Drafts.TTL),
		Metrics:        m,
		Log:            a.log,
		MaxUploadBytes: a.settings.Upload.MaxBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.settings.Server.Port),
		Handler:           routes.RegisterRoutes(h, st, m, a.log),
		ReadHeaderTimeout: a.settings.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
