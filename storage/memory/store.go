// Package memory provides an in-process eventlog.Store for tests and
// single-node deployments.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	playlistErrors "github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

type row struct {
	seq uint64
	ev  eventlog.EditEvent
}

// Store keeps events in memory. Sequence numbers are global and never reused.
type Store struct {
	mu        sync.RWMutex
	seq       uint64
	playlists map[string][]row
	closed    bool
}

var _ eventlog.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{playlists: make(map[string][]row)}
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) Append(ctx context.Context, ev eventlog.EditEvent) error {
	if err := ev.Validate(); err != nil {
		return playlistErrors.NewValidationError(playlistErrors.OpStore, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, r := range s.playlists[ev.PlaylistID] {
		if r.ev.OpID == ev.OpID {
			return playlistErrors.NewWithComponent(playlistErrors.OpStore, "storage/memory",
				playlistErrors.KindAlreadyExists, errors.New("duplicate opId "+ev.OpID))
		}
	}
	s.seq++
	s.playlists[ev.PlaylistID] = append(s.playlists[ev.PlaylistID], row{seq: s.seq, ev: ev.Clone()})
	return nil
}

func (s *Store) Replace(ctx context.Context, playlistID string, events []eventlog.EditEvent) error {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return playlistErrors.NewValidationError(playlistErrors.OpStore, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(events) == 0 {
		delete(s.playlists, playlistID)
		return nil
	}
	rows := make([]row, len(events))
	for i, ev := range events {
		s.seq++
		c := ev.Clone()
		c.PlaylistID = playlistID
		rows[i] = row{seq: s.seq, ev: c}
	}
	s.playlists[playlistID] = rows
	return nil
}

func (s *Store) Load(ctx context.Context, playlistID string, since cursor.IntegerCursor) ([]eventlog.EditEvent, cursor.IntegerCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, since, err
	}
	rows := s.playlists[playlistID]
	start, _ := slices.BinarySearchFunc(rows, since.Seq+1, func(r row, seq uint64) int {
		switch {
		case r.seq < seq:
			return -1
		case r.seq > seq:
			return 1
		}
		return 0
	})
	if start >= len(rows) {
		return nil, since, nil
	}
	out := make([]eventlog.EditEvent, 0, len(rows)-start)
	for _, r := range rows[start:] {
		out = append(out, r.ev.Clone())
	}
	return out, cursor.IntegerCursor{Seq: rows[len(rows)-1].seq}, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	n := 0
	for id, rows := range s.playlists {
		before := len(rows)
		rows = slices.DeleteFunc(rows, func(r row) bool { return r.ev.UserID == userID })
		n += before - len(rows)
		if len(rows) == 0 {
			delete(s.playlists, id)
		} else {
			s.playlists[id] = rows
		}
	}
	return n, nil
}

func (s *Store) DeletePlaylist(ctx context.Context, playlistID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	n := len(s.playlists[playlistID])
	delete(s.playlists, playlistID)
	return n, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
