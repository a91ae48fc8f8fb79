// Package redisnotify broadcasts playlist changes over a Redis pub/sub channel
// and lets other replicas follow them.
package redisnotify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "playlist-events"

// Message is the JSON payload published for every change.
type Message struct {
	Type       string              `json:"type"`
	PlaylistID string              `json:"playlistId"`
	Replica    string              `json:"replica,omitempty"`
	Event      *eventlog.EditEvent `json:"event,omitempty"`
}

// Publisher implements engine.Notifier on top of a Redis client.
type Publisher struct {
	client  *redis.Client
	channel string
	replica string
	logger  *logging.Logger
}

// NewPublisher returns a publisher writing to channel. replica is stamped on
// every message so subscribers can skip their own changes.
func NewPublisher(client *redis.Client, channel, replica string, logger *logging.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Publisher{
		client:  client,
		channel: channel,
		replica: replica,
		logger:  logger.WithComponent(logging.Component("redisnotify")),
	}
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string { return p.channel }

// Notify publishes one change.
func (p *Publisher) Notify(ctx context.Context, playlistID string, ev eventlog.EditEvent, kind string) error {
	msg := Message{Type: kind, PlaylistID: playlistID, Replica: p.replica}
	if ev.OpID != "" {
		ev = ev.Clone()
		msg.Event = &ev
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.NewValidationError(errors.OpStore, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errors.NewStorageError(errors.OpStore, "redisnotify", err).With("channel", p.channel)
	}
	p.logger.DebugContext(ctx, "change published",
		slog.String("playlist_id", playlistID),
		slog.String("type", kind),
	)
	return nil
}
