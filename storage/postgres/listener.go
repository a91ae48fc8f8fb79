package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	stdSync "sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"github.com/c0deZ3R0/go-playlist-kit/logging"
)

// ChangeNotification is the payload announced on every write. An empty
// PlaylistID means the change may touch any playlist. Row inserts carry the
// inserted OpID; rewrites and deletes carry none and name the Origin of the
// store that made them.
type ChangeNotification struct {
	PlaylistID string `json:"playlist_id"`
	Seq        int64  `json:"seq,omitempty"`
	OpID       string `json:"op_id,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// Own reports whether the notification was announced by a store configured
// with origin. Row inserts carry no origin and are never own.
func (n ChangeNotification) Own(origin string) bool {
	return origin != "" && n.Origin == origin
}

// ChangeHandler is called for every received notification.
type ChangeHandler func(ChangeNotification)

// ParseNotification decodes a NOTIFY payload.
func ParseNotification(payload string) (ChangeNotification, error) {
	var n ChangeNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return ChangeNotification{}, fmt.Errorf("failed to parse notification payload: %w", err)
	}
	return n, nil
}

// ChangeListener listens for playlist change notifications and fans them out
// to subscribed handlers. The underlying pq.Listener reconnects by itself; a
// reconnect is reported to handlers as a change to every playlist, since
// notifications may have been missed while disconnected.
type ChangeListener struct {
	listener *pq.Listener
	channel  string
	logger   *logging.Logger

	mu       stdSync.RWMutex
	handlers []ChangeHandler

	closed  int32 // atomic
	started int32 // atomic
	done    chan struct{}
}

// NewChangeListener opens a listener on the store's channel.
func NewChangeListener(config *Config) (*ChangeListener, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	cl := &ChangeListener{
		channel: config.Channel,
		logger:  config.Logger.WithComponent(logging.Component(component + "/listener")),
		done:    make(chan struct{}),
	}
	cl.listener = pq.NewListener(
		config.ConnectionString,
		config.MinReconnectInterval,
		config.MaxReconnectInterval,
		cl.eventCallback,
	)
	if err := cl.listener.Listen(cl.channel); err != nil {
		cl.listener.Close()
		return nil, fmt.Errorf("failed to listen to channel %s: %w", cl.channel, err)
	}
	return cl, nil
}

// eventCallback handles pq.Listener connection events
func (cl *ChangeListener) eventCallback(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		cl.logger.Debug("connected for LISTEN/NOTIFY", slog.String("channel", cl.channel))
	case pq.ListenerEventDisconnected:
		cl.logger.Warn("disconnected from PostgreSQL", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		cl.logger.Info("reconnected to PostgreSQL")
		cl.dispatch(ChangeNotification{})
	case pq.ListenerEventConnectionAttemptFailed:
		cl.logger.Warn("connection attempt failed", slog.Any("error", err))
	}
}

// Subscribe registers handler for every subsequent notification.
func (cl *ChangeListener) Subscribe(handler ChangeHandler) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.handlers = append(cl.handlers, handler)
}

// Start runs the listen loop until ctx is done or the listener is closed.
func (cl *ChangeListener) Start(ctx context.Context) error {
	if atomic.LoadInt32(&cl.closed) == 1 {
		return fmt.Errorf("listener is closed")
	}
	if !atomic.CompareAndSwapInt32(&cl.started, 0, 1) {
		return nil
	}
	go cl.listenLoop(ctx)
	return nil
}

func (cl *ChangeListener) listenLoop(ctx context.Context) {
	defer cl.logger.Debug("change listener stopped")

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cl.done:
			return
		case n, ok := <-cl.listener.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect and is handled by eventCallback.
			if n != nil {
				cl.handle(n.Extra)
			}
		case <-ping.C:
			go func() {
				if err := cl.listener.Ping(); err != nil {
					cl.logger.Warn("ping failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

func (cl *ChangeListener) handle(payload string) {
	n, err := ParseNotification(payload)
	if err != nil {
		cl.logger.Warn("dropping notification", slog.String("error", err.Error()))
		return
	}
	cl.dispatch(n)
}

func (cl *ChangeListener) dispatch(n ChangeNotification) {
	cl.mu.RLock()
	handlers := append([]ChangeHandler(nil), cl.handlers...)
	cl.mu.RUnlock()
	for _, h := range handlers {
		h(n)
	}
}

// Close shuts down the listener.
func (cl *ChangeListener) Close() error {
	if !atomic.CompareAndSwapInt32(&cl.closed, 0, 1) {
		return nil
	}
	close(cl.done)
	return cl.listener.Close()
}
