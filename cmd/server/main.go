package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/p-n-ai/pai-toan6/internal/ai"
	"github.com/p-n-ai/pai-toan6/internal/curriculum"
	"github.com/p-n-ai/pai-toan6/internal/lesson"
	"github.com/p-n-ai/pai-toan6/internal/platform/cache"
	"github.com/p-n-ai/pai-toan6/internal/platform/config"
	"github.com/p-n-ai/pai-toan6/internal/platform/database"
	"github.com/p-n-ai/pai-toan6/internal/storage"
	"github.com/p-n-ai/pai-toan6/internal/study"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	router := newRouter(cfg.AI)
	hub := newOutlineHub()

	ctrl, err := study.NewController(study.Config{
		Catalog:         catalog,
		Store:           backend.store,
		Generator:       lesson.NewGenerator(router),
		Events:          backend.events,
		PassScore:       cfg.Lesson.PassScore,
		StartedProgress: cfg.Lesson.StartedProgress,
		OnOutline:       hub.broadcast,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	ctrl.Load(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newMux(&api{ctrl: ctrl, checks: backend.checks}, hub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // lesson generation can be slow
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"store", cfg.Store.Driver,
			"providers", router.Providers(),
			"chapters", len(catalog.Chapters),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds the slog logger: JSON by default, text when format is "text".
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func loadCatalog(path string) (*curriculum.Catalog, error) {
	if path == "" {
		return curriculum.Default()
	}
	return curriculum.Load(path)
}

// newRouter registers the configured providers in fallback order: Gemini first, then Ollama.
func newRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.Google.APIKey != "" {
		router.Register("gemini", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithOllamaModel(cfg.Ollama.Model)))
	}
	return router
}

// backend is the opened store plus whatever it needs closed on shutdown.
type backend struct {
	store   storage.Store
	events  study.EventLogger
	checks  map[string]func(context.Context) error
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{events: study.NopEventLogger{}, checks: map[string]func(context.Context) error{}}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		b.store = storage.NewMemoryStore()

	case config.StoreBolt, config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if cfg.Store.Driver == config.StoreBolt {
			s, err := storage.OpenBolt(cfg.Store.Path)
			if err != nil {
				return nil, err
			}
			b.store = s
			b.closers = append(b.closers, func() { _ = s.Close() })
		} else {
			s, err := storage.OpenSQLite(cfg.Store.Path)
			if err != nil {
				return nil, err
			}
			b.store = s
			b.closers = append(b.closers, func() { _ = s.Close() })
		}

	case config.StorePostgres:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.checks["database"] = db.HealthCheck

		s, err := storage.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			b.close()
			return nil, err
		}
		events, err := study.NewPostgresEventLogger(ctx, db.Pool)
		if err != nil {
			b.close()
			return nil, err
		}
		b.store = s
		b.events = events

	case config.StoreRedis:
		c, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = c.Close() })
		b.checks["cache"] = c.HealthCheck
		b.store = c.Store()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return b, nil
}
