package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

func add(id, user string, ts int64, item string) eventlog.EditEvent {
	return eventlog.EditEvent{OpID: id, UserID: user, Timestamp: ts, Operation: eventlog.OpAdd, ItemID: item}
}

func addAt(id, user string, ts int64, item string, pos int) eventlog.EditEvent {
	e := add(id, user, ts, item)
	e.Position = eventlog.At(pos)
	return e
}

func move(id, user string, ts int64, item string, pos *int) eventlog.EditEvent {
	return eventlog.EditEvent{OpID: id, UserID: user, Timestamp: ts, Operation: eventlog.OpMove, ItemID: item, Position: pos}
}

func remove(id, user string, ts int64, item string) eventlog.EditEvent {
	return eventlog.EditEvent{OpID: id, UserID: user, Timestamp: ts, Operation: eventlog.OpRemove, ItemID: item}
}

func update(id, user string, ts int64, item string, meta map[string]any) eventlog.EditEvent {
	return eventlog.EditEvent{OpID: id, UserID: user, Timestamp: ts, Operation: eventlog.OpUpdate, ItemID: item, Metadata: meta}
}

func scenario() []eventlog.EditEvent {
	return []eventlog.EditEvent{
		add("op1", "user1", 1, "trackA"),
		add("op2", "user2", 2, "trackB"),
		addAt("op3", "user1", 3, "trackC", 1),
		move("op4", "user2", 4, "trackA", eventlog.At(2)),
		remove("op5", "user1", 5, "trackB"),
	}
}

func TestReferenceScenario(t *testing.T) {
	assert.Equal(t, []string{"trackC", "trackA"}, Sequence(scenario()))
}

func TestDeterminism(t *testing.T) {
	events := scenario()
	first := Replay(events)
	second := Replay(events)
	assert.True(t, first.Equal(second))
	require.NoError(t, first.Validate())
}

func TestReplayIsPure(t *testing.T) {
	events := scenario()
	events[0].Metadata = map[string]any{"title": "A"}
	before := len(events)

	l := Replay(events)
	h, ok := l.FindFirst("trackA")
	require.True(t, ok)
	l.MergeMetadata(h, map[string]any{"title": "changed"})

	assert.Len(t, events, before)
	assert.Equal(t, "A", events[0].Metadata["title"])
}

func TestDuplicateSafeRemoval(t *testing.T) {
	events := []eventlog.EditEvent{
		add("a", "u1", 1, "x"),
		add("b", "u1", 2, "y"),
		add("c", "u2", 3, "x"),
		remove("d", "u1", 4, "x"),
	}
	assert.Equal(t, []string{"y"}, Sequence(events))
}

func TestMoveEdgeCases(t *testing.T) {
	base := []eventlog.EditEvent{add("a", "u", 1, "x"), add("b", "u", 2, "y"), add("c", "u", 3, "z")}

	t.Run("absent item is a no-op", func(t *testing.T) {
		events := append(append([]eventlog.EditEvent{}, base...), move("m", "u", 4, "missing", eventlog.At(0)))
		assert.Equal(t, []string{"x", "y", "z"}, Sequence(events))
	})

	t.Run("nil position moves to tail", func(t *testing.T) {
		events := append(append([]eventlog.EditEvent{}, base...), move("m", "u", 4, "x", nil))
		assert.Equal(t, []string{"y", "z", "x"}, Sequence(events))
	})

	t.Run("to head", func(t *testing.T) {
		events := append(append([]eventlog.EditEvent{}, base...), move("m", "u", 4, "z", eventlog.At(0)))
		assert.Equal(t, []string{"z", "x", "y"}, Sequence(events))
	})

	t.Run("keeps metadata", func(t *testing.T) {
		events := append(append([]eventlog.EditEvent{}, base...),
			update("u1", "u", 4, "x", map[string]any{"k": 1}),
			move("m", "u", 5, "x", eventlog.At(2)))
		l := Replay(events)
		h, ok := l.FindFirst("x")
		require.True(t, ok)
		assert.Equal(t, 2, l.Position(h))
		assert.Equal(t, map[string]any{"k": 1}, l.Metadata(h))
	})
}

func TestUpdate(t *testing.T) {
	events := []eventlog.EditEvent{
		{OpID: "a", UserID: "u", Timestamp: 1, Operation: eventlog.OpAdd, ItemID: "x", Metadata: map[string]any{"a": 1}},
		update("b", "u", 2, "x", map[string]any{"b": 2}),
		update("c", "u", 3, "x", map[string]any{"a": 3}),
		update("d", "u", 4, "missing", map[string]any{"z": 0}),
	}
	l := Replay(events)
	h, ok := l.FindFirst("x")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, l.Metadata(h))
	assert.Equal(t, []string{"x"}, l.ToSequence())
}

func TestUnavailableFiltered(t *testing.T) {
	block := catalog.NewBlocklist("trackB")
	assert.Equal(t, []string{"trackC", "trackA"}, Sequence(scenario(), WithAvailability(block)))

	block = catalog.NewBlocklist("trackA")
	assert.Equal(t, []string{"trackB", "trackC"}, Sequence(scenario()[:3], WithAvailability(block)))
}

func TestReplayPrefix(t *testing.T) {
	events := scenario()
	assert.Empty(t, ReplayPrefix(events, 0).ToSequence())
	assert.Equal(t, []string{"trackA", "trackB"}, ReplayPrefix(events, 2).ToSequence())
	assert.Equal(t, []string{"trackA", "trackC", "trackB"}, ReplayPrefix(events, 3).ToSequence())
	assert.Equal(t, []string{"trackC", "trackB", "trackA"}, ReplayPrefix(events, 4).ToSequence())
	assert.Equal(t, []string{"trackC", "trackA"}, ReplayPrefix(events, 99).ToSequence())
	assert.Empty(t, ReplayPrefix(events, -1).ToSequence())
}

func TestReplayAsOf(t *testing.T) {
	events := scenario()
	assert.Equal(t, []string{"trackA", "trackC", "trackB"}, ReplayAsOf(events, 3).ToSequence())
	assert.Equal(t, []string{"trackC", "trackA"}, ReplayAsOf(events, 100).ToSequence())
	assert.Empty(t, ReplayAsOf(events, 0).ToSequence())
}

func TestApplyMatchesReplay(t *testing.T) {
	events := scenario()
	l := Replay(events[:2])
	for _, e := range events[2:] {
		Apply(l, e)
	}
	assert.True(t, l.Equal(Replay(events)))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	log := eventlog.New()
	for _, e := range scenario()[:4] {
		log.Append(e)
	}
	e := remove("op5", "user1", 5, "trackB")
	log.Append(e)
	want := Sequence(log.Events())

	_, err := log.Undo("user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"trackC", "trackB", "trackA"}, Sequence(log.Events()))

	_, err = log.Redo("user1")
	require.NoError(t, err)
	assert.Equal(t, want, Sequence(log.Events()))
}

func TestMergeCommutativeReplay(t *testing.T) {
	a := scenario()
	b := []eventlog.EditEvent{
		add("r1", "user3", 2, "trackD"),
		addAt("r2", "user3", 4, "trackE", 0),
		remove("r3", "user3", 5, "trackB"),
	}

	ab := eventlog.New()
	ab.Merge(a)
	ab.Merge(b)
	ba := eventlog.New()
	ba.Merge(b)
	ba.Merge(a)
	assert.Equal(t, Sequence(ab.Events()), Sequence(ba.Events()))

	aa := eventlog.New()
	aa.Merge(a)
	aa.Merge(a)
	assert.Equal(t, Sequence(a), Sequence(aa.Events()))
}
