package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) eventlog.Store { return New() })
}

func TestDuplicateOpID(t *testing.T) {
	s := New()
	ctx := context.Background()
	ev := storetest.Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")
	require.NoError(t, s.Append(ctx, ev))
	err := s.Append(ctx, ev)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))
}

func TestStoredEventsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	ev := storetest.Event("p1", "op1", "u1", 1, eventlog.OpAdd, "a")
	ev.Metadata = map[string]any{"k": "v"}
	require.NoError(t, s.Append(ctx, ev))
	ev.Metadata["k"] = "changed"

	events, _, err := s.Load(ctx, "p1", cursor.IntegerCursor{})
	require.NoError(t, err)
	assert.Equal(t, "v", events[0].Metadata["k"])
}
