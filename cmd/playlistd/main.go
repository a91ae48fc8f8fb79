// Command playlistd serves collaborative playlists over HTTP.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/config"
	"github.com/c0deZ3R0/go-playlist-kit/engine"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
	"github.com/c0deZ3R0/go-playlist-kit/notify/redisnotify"
	"github.com/c0deZ3R0/go-playlist-kit/storage/memory"
	"github.com/c0deZ3R0/go-playlist-kit/storage/postgres"
	"github.com/c0deZ3R0/go-playlist-kit/storage/sqlite"
	"github.com/c0deZ3R0/go-playlist-kit/transport/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "playlistd: %v\n", err)
		os.Exit(1)
	}
	logger, level := logging.NewLoggerWithDynamicLevel(cfg.Log)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloadLevelOnHangup(ctx, level, logger)

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logging.Fatal("playlistd stopped", slog.String("error", err.Error()))
	}
}

// reloadLevelOnHangup re-reads the configuration on SIGHUP and applies its
// log level. Other settings need a restart.
func reloadLevelOnHangup(ctx context.Context, level *logging.DynamicLevelVar, logger *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load()
			if err != nil {
				logger.LogError(ctx, err, "failed to reload config")
				continue
			}
			if !level.SetFromString(cfg.Log.Level) {
				logger.Warn("unknown log level", slog.String("level", cfg.Log.Level))
				continue
			}
			logger.Info("log level reloaded", slog.String("level", cfg.Log.Level))
		}
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithStore(store),
		engine.WithCatalog(catalog.NewBlocklist(cfg.Unavailable...)),
		engine.WithCapacity(cfg.Capacity),
		engine.WithLogger(logger),
		engine.WithReplicaID(cfg.ReplicaID),
		engine.WithResolver(resolverFor(cfg.Resolver)),
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rdb = redis.NewClient(ropts)
		defer rdb.Close()
		opts = append(opts, engine.WithNotifier(redisnotify.NewPublisher(rdb, cfg.Redis.Channel, cfg.ReplicaID, logger)))
	}

	eng, err := engine.New(opts...)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer eng.Close()

	if rdb != nil {
		sub := redisnotify.NewSubscriber(rdb, cfg.Redis.Channel, cfg.ReplicaID, logger)
		go func() {
			err := sub.Run(ctx, func(m redisnotify.Message) {
				var ev eventlog.EditEvent
				if m.Event != nil {
					ev = *m.Event
				}
				eng.Refresh(m.PlaylistID, engine.EchoOpID(m.Type, ev))
			})
			if err != nil && ctx.Err() == nil {
				logger.LogError(ctx, err, "redis subscriber stopped")
			}
		}()
	}

	if cfg.Store.Listen {
		listener, err := postgres.NewChangeListener(&postgres.Config{ConnectionString: cfg.Store.DSN, Logger: logger})
		if err != nil {
			return err
		}
		defer listener.Close()
		listener.Subscribe(func(n postgres.ChangeNotification) {
			if n.Own(cfg.ReplicaID) {
				return
			}
			eng.Refresh(n.PlaylistID, n.OpID)
		})
		if err := listener.Start(ctx); err != nil {
			return err
		}
	}

	handler := httpapi.NewHandler(eng, logger,
		httpapi.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		httpapi.WithMaxRequestSize(cfg.HTTP.MaxRequestSize),
	)
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	errc := make(chan error, 1)
	go func() {
		logger.Info("playlistd listening",
			slog.String("addr", cfg.HTTP.Addr),
			slog.String("replica_id", cfg.ReplicaID),
			slog.String("store", cfg.Store.Driver),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config, logger *logging.Logger) (eventlog.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		sc := sqlite.DefaultConfig(cfg.Store.DSN)
		sc.Logger = logger
		return sqlite.New(sc)
	case config.DriverPostgres:
		pc := postgres.DefaultConfig(cfg.Store.DSN)
		pc.Logger = logger
		pc.Origin = cfg.ReplicaID
		return postgres.New(pc)
	default:
		return memory.New(), nil
	}
}

func resolverFor(name string) eventlog.ConflictResolver {
	if name == "last-writer-wins" {
		return eventlog.LastWriterWinsResolver{}
	}
	return eventlog.RemoveWinsResolver{}
}
