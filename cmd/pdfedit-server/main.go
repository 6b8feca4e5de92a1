package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wudi/pdfedit/config"
	"github.com/wudi/pdfedit/export"
	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/scripting"
	"github.com/wudi/pdfedit/server"
	"github.com/wudi/pdfedit/storage"
	"github.com/wudi/pdfedit/store"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit-server: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := observability.NewSlogLogger(observability.NewHandlerLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	repo, err := storage.Open(openCtx, storage.Options{
		Backend:     storage.Backend(cfg.Storage.Backend),
		DatabaseURL: cfg.Storage.DatabaseURL,
		RedisAddr:   cfg.Storage.RedisAddr,
		RedisDB:     cfg.Storage.RedisDB,
		RedisPass:   cfg.Storage.RedisPass,
		TTL:         cfg.Storage.TTL,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	storeOpts := store.Options{Logger: log}
	ec := extractor.DefaultConfig()
	ec.Logger = log
	storeOpts.Extractor = extractor.New(ec)
	if cfg.Sections.Script != "" {
		classifier, err := scripting.LoadClassifier(cfg.Sections.Script, scripting.ClassifierOptions{Logger: log})
		if err != nil {
			return fmt.Errorf("load section classifier: %w", err)
		}
		storeOpts.Sections.Classifier = classifier
	}

	eo := export.DefaultOptions()
	eo.Logger = log
	eo.Compress = cfg.Export.Compress
	eo.Verify = cfg.Export.Verify
	var exporter export.Exporter = export.NewLocal(eo)
	if cfg.Export.RemoteURL != "" {
		exporter = &export.FallbackExporter{
			Primary: export.NewRemote(export.RemoteOptions{
				URL:     cfg.Export.RemoteURL,
				Timeout: cfg.Export.RemoteTimeout,
				Logger:  log,
			}),
			Secondary: exporter,
			Logger:    log,
		}
	}

	srv := server.New(server.Options{
		Logger:        log,
		Repository:    repo,
		Store:         storeOpts,
		Exporter:      exporter,
		CORSOrigins:   cfg.CORSOrigins,
		MaxUpload:     cfg.MaxUpload,
		Debounce:      cfg.Debounce,
		KeepAltTitles: cfg.Sections.KeepAltTitles,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			observability.String("addr", cfg.Addr),
			observability.String("storage", cfg.Storage.Backend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = errors.Join(httpServer.Shutdown(shutdownCtx), srv.Close(shutdownCtx))
	log.Info("server exited")
	return err
}
