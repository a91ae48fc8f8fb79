package version

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// VectorClockError represents errors that can occur during vector clock operations
type VectorClockError struct {
	Msg string
}

func (e *VectorClockError) Error() string {
	return e.Msg
}

const (
	// MaxNodeIDLength is the maximum allowed length for a node ID
	MaxNodeIDLength = 255

	// MaxNodes bounds the number of tracked nodes.
	MaxNodes = 10000
)

// VectorClock maps node IDs (authors or replicas) to the highest logical
// timestamp observed for them. For an event log it is the log's frontier: two
// logs with equal frontiers have observed the same authored history.
type VectorClock struct {
	clocks map[string]uint64
}

var _ Version = (*VectorClock)(nil)

// NewVectorClock creates an empty VectorClock.
func NewVectorClock() *VectorClock {
	return &VectorClock{clocks: make(map[string]uint64)}
}

// NewVectorClockFromString deserializes a JSON object such as
// {"user-1": 5, "user-2": 3}.
func NewVectorClockFromString(data string) (*VectorClock, error) {
	if strings.TrimSpace(data) == "" || data == "{}" {
		return NewVectorClock(), nil
	}

	vc := NewVectorClock()
	if err := json.Unmarshal([]byte(data), &vc.clocks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector clock from '%s': %w", data, err)
	}
	if vc.clocks == nil {
		vc.clocks = make(map[string]uint64)
	}

	for nodeID := range vc.clocks {
		if nodeID == "" {
			return nil, fmt.Errorf("vector clock contains empty node ID")
		}
	}

	return vc, nil
}

// NewVectorClockFromMap copies clocks into a new VectorClock.
func NewVectorClockFromMap(clocks map[string]uint64) *VectorClock {
	vc := NewVectorClock()
	maps.Copy(vc.clocks, clocks)
	return vc
}

func validNode(nodeID string) error {
	if nodeID == "" {
		return &VectorClockError{Msg: "node ID cannot be empty"}
	}
	if len(nodeID) > MaxNodeIDLength {
		return &VectorClockError{Msg: fmt.Sprintf("node ID length exceeds maximum of %d characters", MaxNodeIDLength)}
	}
	return nil
}

// Observe raises the clock for nodeID to ts if ts is higher.
func (vc *VectorClock) Observe(nodeID string, ts uint64) error {
	if err := validNode(nodeID); err != nil {
		return err
	}
	cur, exists := vc.clocks[nodeID]
	if !exists && len(vc.clocks) >= MaxNodes {
		return &VectorClockError{Msg: fmt.Sprintf("cannot track more than %d nodes", MaxNodes)}
	}
	if !exists || ts > cur {
		vc.clocks[nodeID] = ts
	}
	return nil
}

// Merge combines this vector clock with another, taking the maximum clock
// value for each node present in either clock.
//
//	{"a": 2, "b": 1} merged with {"a": 1, "c": 2} is {"a": 2, "b": 1, "c": 2}
func (vc *VectorClock) Merge(other *VectorClock) error {
	if other == nil {
		return nil
	}

	newNodeCount := 0
	for nodeID := range other.clocks {
		if len(nodeID) > MaxNodeIDLength {
			return &VectorClockError{Msg: fmt.Sprintf("other clock contains node ID exceeding maximum length of %d", MaxNodeIDLength)}
		}
		if _, exists := vc.clocks[nodeID]; !exists {
			newNodeCount++
		}
	}
	if len(vc.clocks)+newNodeCount > MaxNodes {
		return &VectorClockError{Msg: fmt.Sprintf("merging would exceed maximum of %d nodes", MaxNodes)}
	}

	for nodeID, otherClock := range other.clocks {
		if currentClock, exists := vc.clocks[nodeID]; !exists || otherClock > currentClock {
			vc.clocks[nodeID] = otherClock
		}
	}
	return nil
}

// Compare determines the causal relationship between two VectorClocks:
// -1 if this happened-before other, 1 if after, 0 if concurrent or equal.
// Versions of another type compare as concurrent.
func (vc *VectorClock) Compare(other Version) int {
	otherVC, ok := other.(*VectorClock)
	if !ok {
		return 0
	}
	if otherVC == nil {
		if vc.IsZero() {
			return 0
		}
		return 1
	}

	before, after := false, false
	for nodeID, c := range vc.clocks {
		if o := otherVC.clocks[nodeID]; c < o {
			before = true
		} else if c > o {
			after = true
		}
	}
	for nodeID, o := range otherVC.clocks {
		if _, seen := vc.clocks[nodeID]; !seen && o > 0 {
			before = true
		}
	}

	switch {
	case before && !after:
		return -1
	case after && !before:
		return 1
	default:
		return 0
	}
}

// String serializes the VectorClock as a JSON object. Keys are sorted by
// encoding/json, so equal clocks produce equal strings.
func (vc *VectorClock) String() string {
	if vc.IsZero() {
		return "{}"
	}
	data, err := json.Marshal(vc.clocks)
	if err != nil {
		return fmt.Sprintf(`{"error":"serialization failed: %s"}`, err.Error())
	}
	return string(data)
}

// MarshalJSON encodes the clock as its node map.
func (vc *VectorClock) MarshalJSON() ([]byte, error) {
	return json.Marshal(vc.clocks)
}

// UnmarshalJSON decodes a node map.
func (vc *VectorClock) UnmarshalJSON(data []byte) error {
	parsed, err := NewVectorClockFromString(string(data))
	if err != nil {
		return err
	}
	vc.clocks = parsed.clocks
	return nil
}

// IsZero returns true if no nodes have been observed.
func (vc *VectorClock) IsZero() bool {
	return vc == nil || len(vc.clocks) == 0
}

// Clone creates a deep copy of the VectorClock.
func (vc *VectorClock) Clone() *VectorClock {
	return NewVectorClockFromMap(vc.clocks)
}

// Get returns the clock for nodeID, 0 if unobserved.
func (vc *VectorClock) Get(nodeID string) uint64 {
	return vc.clocks[nodeID]
}

// All returns a copy of the node map.
func (vc *VectorClock) All() map[string]uint64 {
	return maps.Clone(vc.clocks)
}

// Size returns the number of nodes tracked by this vector clock.
func (vc *VectorClock) Size() int {
	return len(vc.clocks)
}

// IsEqual returns true if two vector clocks are identical.
func (vc *VectorClock) IsEqual(other *VectorClock) bool {
	if other == nil {
		return vc.IsZero()
	}
	return maps.Equal(vc.clocks, other.clocks)
}
