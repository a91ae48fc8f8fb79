package engine

import (
	"context"

	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

// Notification kinds.
const (
	KindTrackAdded      = "track_added"
	KindTrackRemoved    = "track_removed"
	KindTrackMoved      = "track_moved"
	KindTrackUpdated    = "track_updated"
	KindUndo            = "undo"
	KindRedo            = "redo"
	KindMerged          = "merged"
	KindPlaylistCreated = "playlist_created"
	KindPlaylistDeleted = "playlist_deleted"
)

// Notifier is told about every accepted change. ev is the zero event for
// changes that are not a single edit.
type Notifier interface {
	Notify(ctx context.Context, playlistID string, ev eventlog.EditEvent, kind string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, playlistID string, ev eventlog.EditEvent, kind string) error

func (f NotifierFunc) Notify(ctx context.Context, playlistID string, ev eventlog.EditEvent, kind string) error {
	return f(ctx, playlistID, ev, kind)
}

func kindOf(op eventlog.Operation) string {
	switch op {
	case eventlog.OpAdd:
		return KindTrackAdded
	case eventlog.OpRemove:
		return KindTrackRemoved
	case eventlog.OpMove:
		return KindTrackMoved
	case eventlog.OpUpdate:
		return KindTrackUpdated
	}
	return string(op)
}

// EchoOpID returns the op id a peer passes to Refresh for a notification.
// Only appends are recognisable by op id; undo, redo and merge rewrite the
// log, so they yield "" and always invalidate.
func EchoOpID(kind string, ev eventlog.EditEvent) string {
	switch kind {
	case KindTrackAdded, KindTrackRemoved, KindTrackMoved, KindTrackUpdated:
		return ev.OpID
	}
	return ""
}
