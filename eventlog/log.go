package eventlog

import (
	"slices"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/version"
)

// Log is an ordered sequence of edit events plus the undone and redone stacks.
//
// A Log is not safe for concurrent use. Hosts serialize access per playlist.
type Log struct {
	events   []EditEvent
	undone   []EditEvent
	redone   []EditEvent
	resolver ConflictResolver
	gen      uint64
}

// Option configures a Log.
type Option func(*Log)

// WithResolver sets the conflict resolution policy used by Merge.
func WithResolver(r ConflictResolver) Option {
	return func(l *Log) {
		if r != nil {
			l.resolver = r
		}
	}
}

// New returns an empty log using RemoveWinsResolver unless configured otherwise.
func New(opts ...Option) *Log {
	l := &Log{resolver: RemoveWinsResolver{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromEvents returns a log holding events in the given order. No merge or
// conflict resolution is applied, so a persisted log restores exactly.
func FromEvents(events []EditEvent, opts ...Option) *Log {
	l := New(opts...)
	l.events = cloneEvents(events)
	return l
}

// Clone returns an independent copy of the log, stacks and generation included.
func (l *Log) Clone() *Log {
	return &Log{
		events:   cloneEvents(l.events),
		undone:   cloneEvents(l.undone),
		redone:   cloneEvents(l.redone),
		resolver: l.resolver,
		gen:      l.gen,
	}
}

// MergeResult reports what a Merge did.
type MergeResult struct {
	// Added counts incoming events whose OpID was new to the log.
	Added int
	// Duplicates counts incoming events discarded by OpID deduplication.
	Duplicates int
	// Dropped holds the events removed by conflict resolution.
	Dropped []EditEvent
}

// Append adds ev at the end of the log and clears the redone stack. It never
// fails: rejection happens before an event is built.
func (l *Log) Append(ev EditEvent) {
	l.events = append(l.events, ev.Clone())
	l.redone = l.redone[:0]
	l.gen++
}

// Merge folds other into the log. The union is deduplicated by OpID with the
// first occurrence winning, existing events first. It is then sorted by
// (Timestamp, OpID) and passed through the conflict resolver, and the result
// replaces the log.
//
// Merge is deterministic: merging A then B and B then A yield the same log
// whenever OpIDs identify events uniquely.
func (l *Log) Merge(other []EditEvent) MergeResult {
	var res MergeResult

	seen := make(map[string]struct{}, len(l.events)+len(other))
	union := make([]EditEvent, 0, len(l.events)+len(other))
	for _, e := range l.events {
		if _, dup := seen[e.OpID]; dup {
			continue
		}
		seen[e.OpID] = struct{}{}
		union = append(union, e)
	}
	for _, e := range other {
		if _, dup := seen[e.OpID]; dup {
			res.Duplicates++
			continue
		}
		seen[e.OpID] = struct{}{}
		union = append(union, e.Clone())
		res.Added++
	}

	slices.SortStableFunc(union, Compare)
	kept, dropped := l.resolver.Resolve(union)
	res.Dropped = dropped

	l.events = kept
	l.gen++
	return res
}

// RemoveEventsForPlaylist drops every event of the playlist, including those
// parked on the undo and redo stacks, and returns how many left the log.
func (l *Log) RemoveEventsForPlaylist(playlistID string) int {
	return l.purge(func(e EditEvent) bool { return e.PlaylistID == playlistID })
}

// RemoveEventsForUser drops every event authored by userID, including those
// parked on the undo and redo stacks, and returns how many left the log.
func (l *Log) RemoveEventsForUser(userID string) int {
	return l.purge(func(e EditEvent) bool { return e.UserID == userID })
}

func (l *Log) purge(match func(EditEvent) bool) int {
	before := len(l.events)
	l.events = slices.DeleteFunc(l.events, match)
	l.undone = slices.DeleteFunc(l.undone, match)
	l.redone = slices.DeleteFunc(l.redone, match)
	n := before - len(l.events)
	if n > 0 {
		l.gen++
	}
	return n
}

// Undo removes the most recent event authored by userID and pushes it onto the
// undone stack. The event itself is erased, no inverse is computed, so undoing
// an add that others have since moved simply forgets the add.
func (l *Log) Undo(userID string) (EditEvent, error) {
	i := lastIndexOfUser(l.events, userID)
	if i < 0 {
		return EditEvent{}, errors.NothingToUndo(userID)
	}
	ev := l.events[i]
	l.events = slices.Delete(l.events, i, i+1)
	l.undone = append(l.undone, ev)
	l.gen++
	return ev, nil
}

// Redo pops userID's most recently undone event, re-appends it at the end of
// the log and pushes it onto the redone stack. The event keeps its original
// timestamp but replays after everything already in the log.
func (l *Log) Redo(userID string) (EditEvent, error) {
	i := lastIndexOfUser(l.undone, userID)
	if i < 0 {
		return EditEvent{}, errors.NothingToRedo(userID)
	}
	ev := l.undone[i]
	l.undone = slices.Delete(l.undone, i, i+1)
	l.events = append(l.events, ev)
	l.redone = append(l.redone, ev)
	l.gen++
	return ev, nil
}

func lastIndexOfUser(events []EditEvent, userID string) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Events returns a copy of the log in order.
func (l *Log) Events() []EditEvent { return cloneEvents(l.events) }

// Undone returns a copy of the undone stack, oldest first.
func (l *Log) Undone() []EditEvent { return cloneEvents(l.undone) }

// Redone returns a copy of the redone stack, oldest first.
func (l *Log) Redone() []EditEvent { return cloneEvents(l.redone) }

// Contains reports whether an event with opID is in the log.
func (l *Log) Contains(opID string) bool {
	return slices.ContainsFunc(l.events, func(e EditEvent) bool { return e.OpID == opID })
}

// Len returns the number of events in the log.
func (l *Log) Len() int { return len(l.events) }

// Generation changes every time the log's event sequence changes. It is a
// cache key for derived state.
func (l *Log) Generation() uint64 { return l.gen }

// Frontier returns the vector clock of the log: for every author, the highest
// timestamp among their events. Negative timestamps are ignored. Timestamps
// are only monotonic per replica, so a frontier summarizes a log but cannot
// tell which events a peer holds; compare op ids for that.
func (l *Log) Frontier() *version.VectorClock {
	vc := version.NewVectorClock()
	for _, e := range l.events {
		if e.Timestamp < 0 {
			continue
		}
		_ = vc.Observe(e.UserID, uint64(e.Timestamp))
	}
	return vc
}

// MaxTimestamp returns the highest timestamp in the log, or 0 when empty.
func (l *Log) MaxTimestamp() int64 {
	var hi int64
	for _, e := range l.events {
		if e.Timestamp > hi {
			hi = e.Timestamp
		}
	}
	return hi
}

// Popularity counts add events per item in the raw log.
func (l *Log) Popularity() map[string]int {
	counts := make(map[string]int)
	for _, e := range l.events {
		if e.Operation == OpAdd {
			counts[e.ItemID]++
		}
	}
	return counts
}
