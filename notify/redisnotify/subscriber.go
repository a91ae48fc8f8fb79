package redisnotify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/c0deZ3R0/go-playlist-kit/logging"
)

// Handler receives every decoded message from another replica.
type Handler func(Message)

// Subscriber follows a channel written by Publishers.
type Subscriber struct {
	client  *redis.Client
	channel string
	replica string
	logger  *logging.Logger
}

// NewSubscriber returns a subscriber on channel. Messages stamped with replica
// are skipped.
func NewSubscriber(client *redis.Client, channel, replica string, logger *logging.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		replica: replica,
		logger:  logger.WithComponent(logging.Component("redisnotify")),
	}
}

// Run subscribes and dispatches messages to h until ctx is done. Undecodable
// payloads are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, h Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Confirm the subscription before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				s.logger.Warn("dropping malformed change message",
					slog.String("channel", m.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if s.replica != "" && msg.Replica == s.replica {
				continue
			}
			h(msg)
		}
	}
}
