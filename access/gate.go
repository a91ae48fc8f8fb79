package access

import (
	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

// View is the part of a playlist's current state the gate inspects.
type View interface {
	Len() int
	Contains(itemID string) bool
}

// Request describes a mutation before it becomes an event.
type Request struct {
	UserID     string
	PlaylistID string
	Operation  eventlog.Operation
	ItemID     string
	Position   *int
}

// Gate decides whether a mutation may be appended. A rejected request leaves
// the log untouched.
type Gate struct {
	table        *Table
	availability catalog.Availability
	capacity     int
}

// NewGate returns a gate over table. A nil availability blocks nothing and a
// capacity <= 0 means unlimited.
func NewGate(table *Table, availability catalog.Availability, capacity int) *Gate {
	if availability == nil {
		availability = catalog.AllAvailable
	}
	return &Gate{table: table, availability: availability, capacity: capacity}
}

// Table returns the permission table the gate consults.
func (g *Gate) Table() *Table { return g.table }

// Capacity returns the configured maximum playlist length, 0 for none.
func (g *Gate) Capacity() int { return g.capacity }

// CanEdit reports whether the user may mutate the playlist.
func (g *Gate) CanEdit(userID, playlistID string) bool { return g.table.CanEdit(userID, playlistID) }

// CanView reports whether the user may read the playlist.
func (g *Gate) CanView(userID, playlistID string) bool { return g.table.CanView(userID, playlistID) }

// Check validates req against permissions and the current state, in order:
// edit permission, item availability, then the operation's own invariants.
//
//	add     not already present, below capacity, position in [0, size]
//	remove  present
//	move    present, position in [0, size) when set
//	update  present
func (g *Gate) Check(req Request, state View) error {
	op := OperationOf(req.Operation)
	if !g.table.CanEdit(req.UserID, req.PlaylistID) {
		return errors.PermissionDenied(op, req.UserID, req.PlaylistID)
	}
	if g.availability.IsUnavailable(req.ItemID) {
		return errors.ItemUnavailable(op, req.ItemID)
	}

	size := state.Len()
	switch req.Operation {
	case eventlog.OpAdd:
		if state.Contains(req.ItemID) {
			return errors.DuplicateItem(op, req.ItemID)
		}
		if g.capacity > 0 && size >= g.capacity {
			return errors.CapacityExceeded(op, g.capacity)
		}
		if req.Position != nil && (*req.Position < 0 || *req.Position > size) {
			return errors.InvalidPosition(op, *req.Position, size+1)
		}
	case eventlog.OpRemove, eventlog.OpUpdate:
		if !state.Contains(req.ItemID) {
			return errors.ItemNotFound(op, req.ItemID)
		}
	case eventlog.OpMove:
		if !state.Contains(req.ItemID) {
			return errors.ItemNotFound(op, req.ItemID)
		}
		if req.Position != nil && (*req.Position < 0 || *req.Position >= size) {
			return errors.InvalidPosition(op, *req.Position, size)
		}
	default:
		return errors.NewValidationError(op, errors.ErrInvalidOperation)
	}
	return nil
}

// OperationOf maps an edit operation to the error operation naming its entry point.
func OperationOf(op eventlog.Operation) errors.Operation {
	switch op {
	case eventlog.OpAdd:
		return errors.OpAddTrack
	case eventlog.OpRemove:
		return errors.OpRemoveTrack
	case eventlog.OpMove:
		return errors.OpMoveTrack
	case eventlog.OpUpdate:
		return errors.OpUpdateTrack
	}
	return errors.Operation(op)
}
