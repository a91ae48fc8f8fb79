// Package eventlog holds the append-only record of playlist edits.
//
// The log is the only source of truth for a playlist: current state is always
// rebuilt from it by the replay package. Events are never edited in place. They
// leave the log only through undo, through the conflict resolution that runs
// at every merge, or through an explicit purge.
package eventlog

import (
	"cmp"
	"fmt"
	"maps"
	"strings"
)

// Operation is the kind of edit an event records.
type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
	OpMove   Operation = "move"
	OpUpdate Operation = "update"
)

// Valid reports whether o is one of the four known operations.
func (o Operation) Valid() bool {
	switch o {
	case OpAdd, OpRemove, OpMove, OpUpdate:
		return true
	}
	return false
}

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// EditEvent is one accepted mutation intent.
//
// OpID is unique per authoring replica and is the deduplication key during a
// merge. Timestamp is a logical or wall clock value, monotonic per replica but
// not globally unique.
type EditEvent struct {
	OpID       string         `json:"opId" yaml:"opId"`
	UserID     string         `json:"userId" yaml:"userId"`
	PlaylistID string         `json:"playlistId,omitempty" yaml:"playlistId,omitempty"`
	Timestamp  int64          `json:"timestamp" yaml:"timestamp"`
	Operation  Operation      `json:"operation" yaml:"operation"`
	ItemID     string         `json:"itemId" yaml:"itemId"`
	Position   *int           `json:"position,omitempty" yaml:"position,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// At returns a pointer to p, for use as EditEvent.Position.
func At(p int) *int { return &p }

// HasPosition reports whether the event names a target position.
func (e EditEvent) HasPosition() bool { return e.Position != nil }

// PositionOr returns the event's position, or def when none is set.
func (e EditEvent) PositionOr(def int) int {
	if e.Position == nil {
		return def
	}
	return *e.Position
}

// Validate checks the fields every event must carry.
func (e EditEvent) Validate() error {
	switch {
	case e.OpID == "":
		return fmt.Errorf("event has no opId")
	case e.UserID == "":
		return fmt.Errorf("event %s has no userId", e.OpID)
	case e.ItemID == "":
		return fmt.Errorf("event %s has no itemId", e.OpID)
	case !e.Operation.Valid():
		return fmt.Errorf("event %s has unknown operation %q", e.OpID, e.Operation)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with e.
func (e EditEvent) Clone() EditEvent {
	c := e
	if e.Position != nil {
		c.Position = At(*e.Position)
	}
	c.Metadata = maps.Clone(e.Metadata)
	return c
}

func (e EditEvent) String() string {
	s := fmt.Sprintf("%s %s(%s) by %s @%d", e.OpID, e.Operation, e.ItemID, e.UserID, e.Timestamp)
	if e.Position != nil {
		s += fmt.Sprintf(" pos=%d", *e.Position)
	}
	return s
}

// Compare orders events by timestamp, then by OpID.
func Compare(a, b EditEvent) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.OpID, b.OpID)
}

func cloneEvents(events []EditEvent) []EditEvent {
	if events == nil {
		return nil
	}
	out := make([]EditEvent, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}
