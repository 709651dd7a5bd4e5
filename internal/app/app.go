// Package app is the application layer between the CLI and the service:
// it constructs every component from config and owns the HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"timeline-go/internal/config"
	"timeline-go/internal/imaging"
	"timeline-go/internal/maintenance"
	"timeline-go/internal/server"
	"timeline-go/internal/store"
	"timeline-go/internal/timeline"
)

// App is a fully wired instance of the timeline service.
type App struct {
	cfg     *config.Config
	logger  timeline.Logger
	service *timeline.Service
	handler http.Handler
	runner  *maintenance.Runner
	logFile *os.File
}

// New creates an App from the given config. operation identifies the CLI
// command being run (e.g. "Serve", "Requarter") and tags every log line.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slogger, logFile, err := newLogger(cfg.Log.Dir, operation)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	if cfg.Mode == config.ModeDemo {
		// Demo must never touch the hosted repository or S3.
		cfg.Store = config.StoreConfig{Type: "memory"}
		cfg.Images.Backend = "store"
		logger.Info("running in demo mode, all writes stay in memory")
	}

	content, err := store.NewContentStoreFromConfig(cfg)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	blobs, err := store.NewBlobStoreFromConfig(ctx, cfg, content)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	codec, err := imaging.NewCodecFromConfig(cfg.Images)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("creating image codec: %w", err)
	}

	svc := timeline.NewService(content, blobs, codec, timeline.RealClock{}, timeline.UUIDGenerator{}, logger, timeline.Settings{
		CSVPath:          cfg.Data.CSVPath,
		ImagesDir:        cfg.Data.ImagesDir,
		FallbackOriginal: cfg.Images.FallbackOriginal,
	})

	var gate *server.Gate
	if cfg.Mode == config.ModeDemo && cfg.Auth.Username == "" {
		gate = server.NewOpenGate()
	} else {
		gate = server.NewGate(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.OpenPaths)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		service: svc,
		handler: server.New(svc, gate, logger).Routes(),
		runner:  maintenance.NewRunner(content, blobs, codec, logger, cfg.Data.CSVPath, cfg.Data.ImagesDir),
		logFile: logFile,
	}, nil
}

// Serve runs the HTTP server until ctx is canceled, then drains in-flight
// requests.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Listen, "mode", a.cfg.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// Runner exposes the maintenance operations.
func (a *App) Runner() *maintenance.Runner { return a.runner }

// Close releases resources held by the App.
func (a *App) Close() error {
	closeFile(a.logFile)
	return nil
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
