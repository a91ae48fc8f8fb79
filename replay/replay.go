// Package replay rebuilds playlist state from an event log.
//
// Replay is a pure function of its input: the same ordered events always
// produce structurally identical lists, and nothing outside the new list is
// touched. Unavailable items are filtered here, at read time, so the log stays
// an unmodified record even after an item is taken down.
package replay

import (
	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/orderedlist"
)

// State is the derived playlist: item ids with per-node metadata.
type State = orderedlist.List[string]

type options struct {
	availability catalog.Availability
}

// Option configures a replay.
type Option func(*options)

// WithAvailability skips every event whose item a reports unavailable.
func WithAvailability(a catalog.Availability) Option {
	return func(o *options) {
		if a != nil {
			o.availability = a
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{availability: catalog.AllAvailable}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Replay applies events in order to an empty list.
//
//	add     insert at Position when set, otherwise append
//	remove  remove every node holding the item
//	move    move the first node holding the item to Position, or to the tail
//	        when no position is set; no-op when the item is absent
//	update  merge Metadata into the first node holding the item; no-op when
//	        the item is absent
func Replay(events []eventlog.EditEvent, opts ...Option) *State {
	o := buildOptions(opts)
	l := orderedlist.New[string]()
	for _, e := range events {
		apply(l, e, o)
	}
	return l
}

// ReplayPrefix replays the first n events, reconstructing the state as of
// that point in the log. n beyond the log replays everything.
func ReplayPrefix(events []eventlog.EditEvent, n int, opts ...Option) *State {
	n = max(0, min(n, len(events)))
	return Replay(events[:n], opts...)
}

// ReplayAsOf replays the events stamped at or before ts, in log order.
func ReplayAsOf(events []eventlog.EditEvent, ts int64, opts ...Option) *State {
	o := buildOptions(opts)
	l := orderedlist.New[string]()
	for _, e := range events {
		if e.Timestamp <= ts {
			apply(l, e, o)
		}
	}
	return l
}

// Sequence replays events and returns only the ordered item ids.
func Sequence(events []eventlog.EditEvent, opts ...Option) []string {
	return Replay(events, opts...).ToSequence()
}

// Apply applies a single event to l. It is the step Replay runs per event and
// lets hosts advance a cached state without a full rebuild.
func Apply(l *State, e eventlog.EditEvent, opts ...Option) {
	apply(l, e, buildOptions(opts))
}

func apply(l *State, e eventlog.EditEvent, o options) {
	if o.availability.IsUnavailable(e.ItemID) {
		return
	}
	switch e.Operation {
	case eventlog.OpAdd:
		if e.Position != nil {
			l.InsertAt(e.ItemID, *e.Position, e.Metadata)
		} else {
			l.Append(e.ItemID, e.Metadata)
		}
	case eventlog.OpRemove:
		l.RemoveValue(e.ItemID)
	case eventlog.OpMove:
		h, ok := l.FindFirst(e.ItemID)
		if !ok {
			return
		}
		l.MoveTo(h, e.PositionOr(l.Len()))
	case eventlog.OpUpdate:
		if h, ok := l.FindFirst(e.ItemID); ok {
			l.MergeMetadata(h, e.Metadata)
		}
	}
}
