// Package storetest is a conformance suite run against every eventlog.Store.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) eventlog.Store

// Event builds a valid event for tests.
func Event(playlistID, opID, userID string, ts int64, op eventlog.Operation, item string) eventlog.EditEvent {
	return eventlog.EditEvent{
		OpID:       opID,
		UserID:     userID,
		PlaylistID: playlistID,
		Timestamp:  ts,
		Operation:  op,
		ItemID:     item,
	}
}

func opIDs(events []eventlog.EditEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.OpID
	}
	return out
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	open := func(t *testing.T) eventlog.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("append and load", func(t *testing.T) {
		s := open(t)
		withPos := Event("p1", "op2", "u1", 2, eventlog.OpMove, "b")
		withPos.Position = eventlog.At(0)
		withPos.Metadata = map[string]any{"note": "intro"}

		require.NoError(t, s.Append(ctx, Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")))
		require.NoError(t, s.Append(ctx, withPos))
		require.NoError(t, s.Append(ctx, Event("p2", "op3", "u2", 1, eventlog.OpAdd, "c")))

		events, last, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)
		assert.Equal(t, []string{"op1", "op2"}, opIDs(events))
		assert.False(t, last.IsZero())
		require.NotNil(t, events[1].Position)
		assert.Equal(t, 0, *events[1].Position)
		assert.Equal(t, "intro", events[1].Metadata["note"])
		assert.Nil(t, events[0].Position)
		assert.Equal(t, "p1", events[0].PlaylistID)
		assert.Equal(t, eventlog.OpAdd, events[0].Operation)

		more, again, err := s.Load(ctx, "p1", last)
		require.NoError(t, err)
		assert.Empty(t, more)
		assert.Equal(t, last, again)
	})

	t.Run("load since cursor", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")))
		_, mark, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, Event("p1", "op2", "u1", 2, eventlog.OpAdd, "b")))
		events, next, err := s.Load(ctx, "p1", mark)
		require.NoError(t, err)
		assert.Equal(t, []string{"op2"}, opIDs(events))
		assert.Equal(t, 1, next.Compare(mark))
	})

	t.Run("replace resequences after previous cursor", func(t *testing.T) {
		s := open(t)
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.Append(ctx, Event("p1", fmt.Sprintf("op%d", i), "u1", int64(i), eventlog.OpAdd, fmt.Sprintf("t%d", i))))
		}
		_, mark, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)

		rewritten := []eventlog.EditEvent{
			Event("p1", "op3", "u1", 3, eventlog.OpAdd, "t3"),
			Event("p1", "op1", "u1", 1, eventlog.OpAdd, "t1"),
		}
		require.NoError(t, s.Replace(ctx, "p1", rewritten))

		events, _, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)
		assert.Equal(t, []string{"op3", "op1"}, opIDs(events), "replace keeps the given order")

		events, _, err = s.Load(ctx, "p1", mark)
		require.NoError(t, err)
		assert.Equal(t, []string{"op3", "op1"}, opIDs(events), "holders of an old cursor see the rewrite")

		require.NoError(t, s.Replace(ctx, "p1", nil))
		events, _, err = s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("deletes", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")))
		require.NoError(t, s.Append(ctx, Event("p1", "op2", "u2", 2, eventlog.OpAdd, "b")))
		require.NoError(t, s.Append(ctx, Event("p2", "op3", "u1", 1, eventlog.OpAdd, "c")))
		require.NoError(t, s.Append(ctx, Event("p3", "op4", "u2", 1, eventlog.OpAdd, "d")))

		n, err := s.DeleteUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		events, _, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "op2", events[0].OpID)
		events, _, err = s.Load(ctx, "p2", cursor.IntegerCursor{})
		require.NoError(t, err)
		assert.Empty(t, events)

		n, err = s.DeletePlaylist(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.DeletePlaylist(ctx, "missing")
		require.NoError(t, err)
		assert.Zero(t, n)

		events, _, err = s.Load(ctx, "p1", cursor.IntegerCursor{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("rejects invalid events", func(t *testing.T) {
		s := open(t)
		err := s.Append(ctx, Event("p1", "", "u1", 1, eventlog.OpAdd, "a"))
		assert.Error(t, err)
		err = s.Replace(ctx, "p1", []eventlog.EditEvent{Event("p1", "op1", "u1", 1, "shuffle", "a")})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := s.Append(cctx, Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a"))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed store", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())
		assert.Error(t, s.Append(ctx, Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")))
		_, _, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
		assert.Error(t, err)
		assert.NoError(t, s.Close(), "close is idempotent")
	})
}
