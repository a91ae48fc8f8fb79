package engine

import (
	"errors"

	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
)

// Option is a functional option for configuring an Engine via New.
type Option func(*Engine) error

// WithStore sets the event store. Defaults to an in-memory store.
func WithStore(s eventlog.Store) Option {
	return func(e *Engine) error {
		if s == nil {
			return errors.New("store cannot be nil")
		}
		e.store = s
		return nil
	}
}

// WithCatalog sets the availability provider consulted by the gate and replay.
func WithCatalog(a catalog.Availability) Option {
	return func(e *Engine) error {
		if a == nil {
			return errors.New("catalog cannot be nil")
		}
		e.catalog = a
		return nil
	}
}

// WithCapacity sets the maximum playlist length. Zero means unlimited.
func WithCapacity(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return errors.New("capacity must be >= 0")
		}
		e.capacity = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		e.logger = l
		return nil
	}
}

// WithNotifier sets the change notifier. Notification failures are logged and
// never fail a mutation.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) error {
		e.notifier = n
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(e *Engine) error {
		if m == nil {
			return errors.New("metrics collector cannot be nil")
		}
		e.metrics = m
		return nil
	}
}

// WithReplicaID names this engine in logs and notifications.
func WithReplicaID(id string) Option {
	return func(e *Engine) error {
		if id == "" {
			return errors.New("replica id cannot be empty")
		}
		e.replicaID = id
		return nil
	}
}

// WithIDGenerator sets the op id source. Defaults to random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) error {
		if gen == nil {
			return errors.New("id generator cannot be nil")
		}
		e.newID = gen
		return nil
	}
}

// WithResolver sets the conflict policy used by Merge.
func WithResolver(r eventlog.ConflictResolver) Option {
	return func(e *Engine) error {
		if r == nil {
			return errors.New("resolver cannot be nil")
		}
		e.resolver = r
		return nil
	}
}
