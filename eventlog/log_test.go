package eventlog

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
)

func ev(id, user string, ts int64, op Operation, item string) EditEvent {
	return EditEvent{OpID: id, UserID: user, PlaylistID: "p1", Timestamp: ts, Operation: op, ItemID: item}
}

func opIDs(events []EditEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.OpID
	}
	return out
}

func TestAppend(t *testing.T) {
	l := New()
	g0 := l.Generation()
	l.Append(ev("a", "u1", 1, OpAdd, "x"))
	l.Append(ev("b", "u1", 2, OpAdd, "y"))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"a", "b"}, opIDs(l.Events()))
	assert.Greater(t, l.Generation(), g0)
}

func TestAppendCopiesEvent(t *testing.T) {
	l := New()
	e := ev("a", "u1", 1, OpAdd, "x")
	e.Metadata = map[string]any{"k": "v"}
	e.Position = At(3)
	l.Append(e)

	e.Metadata["k"] = "changed"
	*e.Position = 9

	got := l.Events()[0]
	assert.Equal(t, "v", got.Metadata["k"])
	assert.Equal(t, 3, *got.Position)
}

func TestMergeSortsAndDedups(t *testing.T) {
	l := New()
	l.Append(ev("b", "u1", 2, OpAdd, "y"))
	l.Append(ev("a", "u1", 1, OpAdd, "x"))

	res := l.Merge([]EditEvent{
		ev("a", "u2", 99, OpAdd, "ignored"),
		ev("c", "u2", 2, OpAdd, "z"),
		ev("d", "u2", 0, OpAdd, "w"),
	})

	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Empty(t, res.Dropped)
	assert.Equal(t, []string{"d", "a", "b", "c"}, opIDs(l.Events()))
	assert.Equal(t, "x", l.Events()[1].ItemID, "first occurrence of an opId wins")
}

func TestMergeCommutative(t *testing.T) {
	a := []EditEvent{
		ev("a1", "u1", 1, OpAdd, "x"),
		ev("a2", "u1", 3, OpAdd, "y"),
		ev("a3", "u1", 5, OpRemove, "x"),
	}
	b := []EditEvent{
		ev("b1", "u2", 2, OpAdd, "z"),
		ev("b2", "u2", 3, OpAdd, "w"),
		ev("b3", "u2", 5, OpMove, "x"),
	}

	ab := New()
	ab.Merge(a)
	ab.Merge(b)

	ba := New()
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab.Events(), ba.Events())
}

func TestMergeIdempotent(t *testing.T) {
	a := []EditEvent{
		ev("a1", "u1", 1, OpAdd, "x"),
		ev("a2", "u1", 2, OpAdd, "y"),
	}
	l := New()
	l.Merge(a)
	first := l.Events()

	res := l.Merge(a)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, first, l.Events())

	self := New()
	self.Merge(append(append([]EditEvent{}, a...), a...))
	assert.Equal(t, first, self.Events())
}

func TestMergeRandomOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ops := []Operation{OpAdd, OpRemove, OpMove, OpUpdate}
	var all []EditEvent
	for i := 0; i < 60; i++ {
		all = append(all, ev(fmt.Sprintf("op-%02d", i), fmt.Sprintf("u%d", i%3),
			int64(rng.Intn(10)), ops[rng.Intn(len(ops))], fmt.Sprintf("t%d", rng.Intn(5))))
	}

	reference := New()
	reference.Merge(all)

	for trial := 0; trial < 10; trial++ {
		shuffled := append([]EditEvent{}, all...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		split := rng.Intn(len(shuffled))

		l := New()
		l.Merge(shuffled[split:])
		l.Merge(shuffled[:split])
		require.Equal(t, reference.Events(), l.Events(), "trial %d", trial)
	}
}

func TestRemoveWinsResolver(t *testing.T) {
	l := New()
	res := l.Merge([]EditEvent{
		ev("a", "u1", 5, OpAdd, "x"),
		ev("b", "u2", 5, OpRemove, "x"),
		ev("c", "u3", 5, OpMove, "x"),
		ev("d", "u1", 5, OpAdd, "y"),
		ev("e", "u1", 6, OpAdd, "x"),
	})

	assert.Equal(t, []string{"b", "d", "e"}, opIDs(l.Events()))
	assert.ElementsMatch(t, []string{"a", "c"}, opIDs(res.Dropped))
}

func TestRemoveWinsLastRemoveKept(t *testing.T) {
	kept, dropped := RemoveWinsResolver{}.Resolve([]EditEvent{
		ev("a", "u1", 1, OpRemove, "x"),
		ev("b", "u2", 1, OpRemove, "x"),
		ev("c", "u2", 1, OpAdd, "x"),
	})
	assert.Equal(t, []string{"b"}, opIDs(kept))
	assert.Equal(t, []string{"a", "c"}, opIDs(dropped))
}

func TestLastWriterWinsResolver(t *testing.T) {
	l := New(WithResolver(LastWriterWinsResolver{}))
	res := l.Merge([]EditEvent{
		ev("a", "u1", 5, OpRemove, "x"),
		ev("b", "u2", 5, OpAdd, "x"),
	})
	assert.Equal(t, []string{"b"}, opIDs(l.Events()))
	assert.Equal(t, []string{"a"}, opIDs(res.Dropped))
}

func TestPurges(t *testing.T) {
	l := New()
	l.Append(EditEvent{OpID: "a", UserID: "u1", PlaylistID: "p1", Timestamp: 1, Operation: OpAdd, ItemID: "x"})
	l.Append(EditEvent{OpID: "b", UserID: "u2", PlaylistID: "p1", Timestamp: 2, Operation: OpAdd, ItemID: "y"})
	l.Append(EditEvent{OpID: "c", UserID: "u1", PlaylistID: "p2", Timestamp: 3, Operation: OpAdd, ItemID: "z"})
	l.Append(EditEvent{OpID: "d", UserID: "u1", PlaylistID: "p1", Timestamp: 4, Operation: OpAdd, ItemID: "w"})
	_, err := l.Undo("u1")
	require.NoError(t, err)

	assert.Equal(t, 1, l.RemoveEventsForPlaylist("p2"))
	assert.Equal(t, []string{"a", "b"}, opIDs(l.Events()))

	assert.Equal(t, 1, l.RemoveEventsForUser("u1"))
	assert.Equal(t, []string{"b"}, opIDs(l.Events()))
	assert.Empty(t, l.Undone(), "purge reaches the undo stack")

	g := l.Generation()
	assert.Equal(t, 0, l.RemoveEventsForUser("nobody"))
	assert.Equal(t, g, l.Generation())
}

func TestUndoRedo(t *testing.T) {
	l := New()
	l.Append(ev("a", "u1", 1, OpAdd, "x"))
	l.Append(ev("b", "u2", 2, OpAdd, "y"))
	l.Append(ev("c", "u1", 3, OpAdd, "z"))

	undone, err := l.Undo("u1")
	require.NoError(t, err)
	assert.Equal(t, "c", undone.OpID)
	assert.Equal(t, []string{"a", "b"}, opIDs(l.Events()))

	undone, err = l.Undo("u1")
	require.NoError(t, err)
	assert.Equal(t, "a", undone.OpID)
	assert.Equal(t, []string{"b"}, opIDs(l.Events()))

	_, err = l.Undo("u1")
	assert.True(t, errors.IsKind(err, errors.KindNothingToUndo))
	assert.True(t, errors.IsNonFatal(err))

	redone, err := l.Redo("u1")
	require.NoError(t, err)
	assert.Equal(t, "a", redone.OpID)
	assert.Equal(t, []string{"b", "a"}, opIDs(l.Events()), "redo re-appends at the end")
	assert.Equal(t, []string{"a"}, opIDs(l.Redone()))

	_, err = l.Redo("u2")
	assert.ErrorIs(t, err, errors.ErrNothingToRedo)

	redone, err = l.Redo("u1")
	require.NoError(t, err)
	assert.Equal(t, "c", redone.OpID)
	assert.Equal(t, []string{"a", "c"}, opIDs(l.Redone()), "redo does not clear redone")
	assert.Empty(t, l.Undone())

	l.Append(ev("d", "u2", 4, OpAdd, "w"))
	assert.Empty(t, l.Redone(), "append clears redone")
}

func TestUndoUnknownUser(t *testing.T) {
	l := New()
	_, err := l.Undo("ghost")
	assert.ErrorIs(t, err, errors.ErrNothingToUndo)
	_, err = l.Redo("ghost")
	assert.ErrorIs(t, err, errors.ErrNothingToRedo)
}

func TestFrontier(t *testing.T) {
	l := New()
	l.Merge([]EditEvent{
		ev("a", "u1", 1, OpAdd, "x"),
		ev("b", "u2", 4, OpAdd, "y"),
		ev("c", "u1", 6, OpAdd, "z"),
		ev("d", "u2", 7, OpRemove, "y"),
	})

	f := l.Frontier()
	assert.Equal(t, uint64(6), f.Get("u1"))
	assert.Equal(t, uint64(7), f.Get("u2"))
	assert.Equal(t, int64(7), l.MaxTimestamp())
	assert.True(t, New().Frontier().IsZero())
}

func TestPopularity(t *testing.T) {
	l := New()
	l.Append(ev("a", "u1", 1, OpAdd, "x"))
	l.Append(ev("b", "u2", 2, OpAdd, "x"))
	l.Append(ev("c", "u2", 3, OpRemove, "x"))
	l.Append(ev("d", "u2", 4, OpAdd, "y"))

	assert.Equal(t, map[string]int{"x": 2, "y": 1}, l.Popularity())
}

func TestFromEventsKeepsOrder(t *testing.T) {
	events := []EditEvent{ev("b", "u1", 2, OpAdd, "y"), ev("a", "u1", 1, OpAdd, "x")}
	l := FromEvents(events)
	assert.Equal(t, []string{"b", "a"}, opIDs(l.Events()))
}

func TestClone(t *testing.T) {
	l := New()
	l.Append(ev("a", "u1", 1, OpAdd, "x"))
	l.Append(ev("b", "u1", 2, OpAdd, "y"))
	_, err := l.Undo("u1")
	require.NoError(t, err)

	c := l.Clone()
	assert.Equal(t, l.Generation(), c.Generation())
	_, err = c.Redo("u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, opIDs(l.Events()))
	assert.Equal(t, []string{"b"}, opIDs(l.Undone()))
	assert.Equal(t, []string{"a", "b"}, opIDs(c.Events()))
}

func TestContains(t *testing.T) {
	l := New()
	l.Append(ev("op1", "u1", 1, OpAdd, "a"))
	assert.True(t, l.Contains("op1"))
	assert.False(t, l.Contains("op2"))
}
