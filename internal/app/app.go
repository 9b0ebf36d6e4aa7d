package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/eventboard/internal/config"
	"github.com/klokku/eventboard/internal/database"
	"github.com/klokku/eventboard/internal/revalidate"
	"github.com/klokku/eventboard/internal/tracing"
	"github.com/klokku/eventboard/internal/utils"
	"github.com/klokku/eventboard/pkg/event"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, store, router, and server lifecycle.
type Application struct {
	cfg     config.Application
	router  *mux.Router
	srv     *http.Server
	deps    *Dependencies
	closers []func(context.Context) error
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	repo, err := a.openStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	redisPublisher, err := a.openPublisher(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	var publisher revalidate.Publisher
	if redisPublisher != nil {
		publisher = redisPublisher
	}

	clock := &utils.SystemClock{}
	a.deps = BuildDependencies(repo, clock, publisher)

	if redisPublisher != nil {
		listenCtx, stopListening := context.WithCancel(context.Background())
		a.closers = append(a.closers, func(context.Context) error { stopListening(); return nil })
		if err := redisPublisher.Listen(listenCtx, a.deps.Revalidator); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to listen for invalidations: %w", err)
		}
	}

	if cfg.Seed {
		if err := event.Seed(ctx, a.deps.EventRepository, clock); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to seed events: %w", err)
		}
	}

	a.router = NewRouter(a.deps)
	a.srv = &http.Server{
		Handler:      a.router,
		Addr:         cfg.Server.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (event.Repository, error) {
	clock := &utils.SystemClock{}
	switch a.cfg.Store.Backend {
	case config.BackendSqlite:
		db, err := database.OpenSqlite(a.cfg.Store.SqlitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if err := database.MigrateSqlite(db); err != nil {
			return nil, err
		}
		return event.NewSqliteRepository(db, clock), nil
	case config.BackendPostgres:
		if err := database.MigratePostgres(a.cfg.Database); err != nil {
			return nil, err
		}
		pool, err := database.OpenPostgres(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		return event.NewPostgresRepository(pool, clock), nil
	default:
		log.Info("Using in-memory event store, events are lost on restart")
		return event.NewMemoryRepository(clock), nil
	}
}

// openPublisher returns nil when no Redis address is configured.
func (a *Application) openPublisher(ctx context.Context) (*revalidate.RedisPublisher, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	log.Infof("Sharing view invalidations on redis channel %s", a.cfg.Redis.Channel)
	return revalidate.NewRedisPublisher(client, a.cfg.Redis.Channel), nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM, then drains in-flight requests.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.close(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	err := a.srv.Shutdown(shutdownCtx)
	a.close(shutdownCtx)
	return err
}

func (a *Application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warnf("failed to release resource: %v", err)
		}
	}
	a.closers = nil
}
