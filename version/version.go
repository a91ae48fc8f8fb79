// Package version provides the clocks used to order and summarise edit events.
//
// Lamport stamps events on one replica with monotonically increasing logical
// timestamps and stays ahead of every timestamp it has observed from others.
// VectorClock summarises a log as the highest timestamp seen per author, which
// lets two replicas tell whether one has observed everything the other has.
package version

// Version represents a point-in-time snapshot of a log.
type Version interface {
	// Compare returns -1 if this version is before other, 0 if equal or
	// concurrent, 1 if after.
	Compare(other Version) int

	// String returns a string representation of the version
	String() string

	// IsZero returns true if this is the zero/initial version
	IsZero() bool
}
