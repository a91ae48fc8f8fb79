package httpapi

import (
	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/version"
)

// UserHeader carries the caller's identity. Authentication happens upstream.
const UserHeader = "X-User-ID"

// CreatePlaylistRequest is the body of POST /playlists.
type CreatePlaylistRequest struct {
	ID      string `json:"id"`
	Privacy string `json:"privacy,omitempty"`
}

// AddTrackRequest is the body of POST /playlists/{id}/tracks.
type AddTrackRequest struct {
	ItemID   string         `json:"itemId"`
	Position *int           `json:"position,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MoveTrackRequest is the body of POST /playlists/{id}/tracks/{item}/move.
// A missing position moves the track to the end.
type MoveTrackRequest struct {
	Position *int `json:"position,omitempty"`
}

// UpdateTrackRequest is the body of PATCH /playlists/{id}/tracks/{item}.
type UpdateTrackRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// SetRoleRequest is the body of PUT /playlists/{id}/members/{user}. An empty
// role revokes membership.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetPrivacyRequest is the body of PUT /playlists/{id}/privacy.
type SetPrivacyRequest struct {
	Privacy string `json:"privacy"`
}

// Track is one entry of a playlist state.
type Track struct {
	ItemID   string         `json:"itemId"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StateResponse is the body of GET /playlists/{id}.
type StateResponse struct {
	PlaylistID string  `json:"playlistId"`
	Tracks     []Track `json:"tracks"`
}

// EventsResponse is the body of GET /playlists/{id}/events.
type EventsResponse struct {
	Events []eventlog.EditEvent `json:"events"`
	Cursor *cursor.WireCursor   `json:"cursor"`
}

// SyncResponse is the body of POST /playlists/{id}/sync.
type SyncResponse struct {
	Added      int                  `json:"added"`
	Duplicates int                  `json:"duplicates"`
	Dropped    []eventlog.EditEvent `json:"dropped,omitempty"`
	Frontier   *version.VectorClock `json:"frontier"`
}
