package eventlog

import (
	"context"

	"github.com/c0deZ3R0/go-playlist-kit/cursor"
)

// Store persists playlist event logs. Events of one playlist are kept in log
// order; Load returns them with a cursor that can be passed back as since to
// fetch only later appends.
type Store interface {
	// Append persists ev at the end of its playlist's log.
	Append(ctx context.Context, ev EditEvent) error

	// Replace rewrites a playlist's log after a merge, undo or redo.
	Replace(ctx context.Context, playlistID string, events []EditEvent) error

	// Load returns the events stored after since, in log order, and the cursor
	// of the last one returned (since itself when nothing is newer).
	Load(ctx context.Context, playlistID string, since cursor.IntegerCursor) ([]EditEvent, cursor.IntegerCursor, error)

	// DeleteUser removes every event authored by userID across playlists.
	DeleteUser(ctx context.Context, userID string) (int, error)

	// DeletePlaylist removes every event of the playlist.
	DeletePlaylist(ctx context.Context, playlistID string) (int, error)

	Close() error
}
