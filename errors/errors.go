// Package errors provides the structured error type used across the playlist kit.
//
// Every failure carries a Kind. Domain kinds (permission, availability, duplicate,
// capacity, position, presence, undo/redo) are locally recoverable: the caller is
// informed and the event log is left unmodified.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindItemUnavailable   Kind = "ITEM_UNAVAILABLE"
	KindDuplicateItem     Kind = "DUPLICATE_ITEM"
	KindCapacityExceeded  Kind = "CAPACITY_EXCEEDED"
	KindInvalidPosition   Kind = "INVALID_POSITION"
	KindItemNotFound      Kind = "ITEM_NOT_FOUND"
	KindNothingToUndo     Kind = "NOTHING_TO_UNDO"
	KindNothingToRedo     Kind = "NOTHING_TO_REDO"
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindValidationFailure Kind = "VALIDATION_FAILURE"
	KindStorageFailure    Kind = "STORAGE_FAILURE"
)

// Sentinel errors, one per kind, so callers can use errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrItemUnavailable  = errors.New("item unavailable")
	ErrDuplicateItem    = errors.New("item already present")
	ErrCapacityExceeded = errors.New("playlist at capacity")
	ErrInvalidPosition  = errors.New("position out of range")
	ErrItemNotFound     = errors.New("item not found")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
	ErrNotFound         = errors.New("playlist not found")
	ErrAlreadyExists    = errors.New("playlist already exists")

	ErrInvalidOperation = errors.New("unknown edit operation")
)

var sentinels = map[Kind]error{
	KindPermissionDenied: ErrPermissionDenied,
	KindItemUnavailable:  ErrItemUnavailable,
	KindDuplicateItem:    ErrDuplicateItem,
	KindCapacityExceeded: ErrCapacityExceeded,
	KindInvalidPosition:  ErrInvalidPosition,
	KindItemNotFound:     ErrItemNotFound,
	KindNothingToUndo:    ErrNothingToUndo,
	KindNothingToRedo:    ErrNothingToRedo,
	KindNotFound:         ErrNotFound,
	KindAlreadyExists:    ErrAlreadyExists,
}

// Operation names the entry point during which the error occurred.
type Operation string

const (
	OpAddTrack       Operation = "add_track"
	OpRemoveTrack    Operation = "remove_track"
	OpMoveTrack      Operation = "move_track"
	OpUpdateTrack    Operation = "update_track"
	OpUndo           Operation = "undo"
	OpRedo           Operation = "redo"
	OpMerge          Operation = "merge"
	OpReplay         Operation = "replay"
	OpCreatePlaylist Operation = "create_playlist"
	OpDeletePlaylist Operation = "delete_playlist"
	OpView           Operation = "view"
	OpGrant          Operation = "grant"
	OpPurgeUser      Operation = "purge_user"
	OpStore          Operation = "store"
	OpLoad           Operation = "load"
	OpDecode         Operation = "decode"
	OpClose          Operation = "close"
)

// PlaylistError is the structured error returned by every package in the kit.
type PlaylistError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g. "gate", "storage/sqlite")
	Component string

	// Kind of failure
	Kind Kind

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Metadata for additional context (playlist, user, item)
	Metadata map[string]interface{}
}

func (e *PlaylistError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *PlaylistError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *PlaylistError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// With returns e after attaching a metadata key.
func (e *PlaylistError) With(key string, value interface{}) *PlaylistError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// New creates a PlaylistError of the given kind. A nil cause is replaced by the
// kind's sentinel error.
func New(op Operation, kind Kind, cause error) *PlaylistError {
	if cause == nil {
		cause = sentinels[kind]
		if cause == nil {
			cause = errors.New(string(kind))
		}
	}
	return &PlaylistError{Op: op, Kind: kind, Err: cause}
}

// NewWithComponent creates a PlaylistError with component information.
func NewWithComponent(op Operation, component string, kind Kind, cause error) *PlaylistError {
	e := New(op, kind, cause)
	e.Component = component
	return e
}

// PermissionDenied reports a mutation or read by a user without the required role.
func PermissionDenied(op Operation, userID, playlistID string) *PlaylistError {
	return NewWithComponent(op, "gate", KindPermissionDenied, nil).
		With("user_id", userID).
		With("playlist_id", playlistID)
}

// ItemUnavailable reports a mutation targeting a globally blocked item.
func ItemUnavailable(op Operation, itemID string) *PlaylistError {
	return NewWithComponent(op, "gate", KindItemUnavailable, nil).With("item_id", itemID)
}

// DuplicateItem reports an add of an item already present.
func DuplicateItem(op Operation, itemID string) *PlaylistError {
	return NewWithComponent(op, "gate", KindDuplicateItem, nil).With("item_id", itemID)
}

// CapacityExceeded reports an add to a playlist already at its maximum size.
func CapacityExceeded(op Operation, capacity int) *PlaylistError {
	return NewWithComponent(op, "gate", KindCapacityExceeded, nil).With("capacity", capacity)
}

// InvalidPosition reports a position outside [0, size).
func InvalidPosition(op Operation, position, size int) *PlaylistError {
	return NewWithComponent(op, "gate", KindInvalidPosition,
		fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, position, size)).
		With("position", position).
		With("size", size)
}

// ItemNotFound reports a remove/move/update of an item absent from the current state.
func ItemNotFound(op Operation, itemID string) *PlaylistError {
	return NewWithComponent(op, "gate", KindItemNotFound, nil).With("item_id", itemID)
}

// NothingToUndo is the non-fatal report that a user has no surviving event.
func NothingToUndo(userID string) *PlaylistError {
	return NewWithComponent(OpUndo, "eventlog", KindNothingToUndo, nil).With("user_id", userID)
}

// NothingToRedo is the non-fatal report that a user has no undone event.
func NothingToRedo(userID string) *PlaylistError {
	return NewWithComponent(OpRedo, "eventlog", KindNothingToRedo, nil).With("user_id", userID)
}

// NewStorageError creates a retryable storage failure.
func NewStorageError(op Operation, component string, cause error) *PlaylistError {
	e := NewWithComponent(op, component, KindStorageFailure, cause)
	e.Retryable = true
	return e
}

// NewValidationError creates a validation failure.
func NewValidationError(op Operation, cause error) *PlaylistError {
	return New(op, KindValidationFailure, cause)
}

// KindOf returns the kind of the first PlaylistError in err's chain, or "".
func KindOf(err error) Kind {
	var pe *PlaylistError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNonFatal reports whether err is an informational condition (undo/redo with
// nothing to do) rather than a failure.
func IsNonFatal(err error) bool {
	k := KindOf(err)
	return k == KindNothingToUndo || k == KindNothingToRedo
}

// IsRetryable checks if an error is a retryable PlaylistError
func IsRetryable(err error) bool {
	var pe *PlaylistError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
