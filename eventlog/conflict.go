package eventlog

var (
	_ ConflictResolver = RemoveWinsResolver{}
	_ ConflictResolver = LastWriterWinsResolver{}
)

// ConflictResolver decides which events survive a merge. It receives the
// deduplicated events in (Timestamp, OpID) order and must return the kept
// events in that same relative order.
type ConflictResolver interface {
	Resolve(events []EditEvent) (kept, dropped []EditEvent)
}

// ConflictKey groups events that compete with each other.
type ConflictKey struct {
	ItemID    string
	Timestamp int64
}

// KeyOf returns the conflict key of e.
func KeyOf(e EditEvent) ConflictKey {
	return ConflictKey{ItemID: e.ItemID, Timestamp: e.Timestamp}
}

// RemoveWinsResolver keeps one event per (ItemID, Timestamp) group. A remove
// beats every other operation in its group; among events of equal standing the
// last in sort order wins.
//
// This is a simplified last-writer-wins policy, not a CRDT. Events on the same
// item at different timestamps never conflict, so a concurrent add and remove
// stamped differently both survive and replay applies them in order.
type RemoveWinsResolver struct{}

func (RemoveWinsResolver) Resolve(events []EditEvent) (kept, dropped []EditEvent) {
	return resolveGroups(events, func(cur, cand EditEvent) bool {
		if cand.Operation == OpRemove {
			return true
		}
		return cur.Operation != OpRemove
	})
}

// LastWriterWinsResolver keeps the last event in sort order for every
// (ItemID, Timestamp) group regardless of operation.
type LastWriterWinsResolver struct{}

func (LastWriterWinsResolver) Resolve(events []EditEvent) (kept, dropped []EditEvent) {
	return resolveGroups(events, func(cur, cand EditEvent) bool { return true })
}

// resolveGroups walks sorted events and picks one winner per conflict key.
// replace reports whether cand, later in sort order, displaces the current
// winner cur.
func resolveGroups(events []EditEvent, replace func(cur, cand EditEvent) bool) (kept, dropped []EditEvent) {
	winner := make(map[ConflictKey]int, len(events))
	for i, e := range events {
		k := KeyOf(e)
		cur, ok := winner[k]
		if !ok || replace(events[cur], e) {
			winner[k] = i
		}
	}
	if len(winner) == len(events) {
		return events, nil
	}
	kept = make([]EditEvent, 0, len(winner))
	for i, e := range events {
		if winner[KeyOf(e)] == i {
			kept = append(kept, e)
		} else {
			dropped = append(dropped, e)
		}
	}
	return kept, dropped
}
