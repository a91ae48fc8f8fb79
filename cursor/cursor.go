// Package cursor defines positions in a playlist's event stream and their wire form.
//
// An IntegerCursor is a high-water mark over the persisted sequence of one
// playlist's events. A FrontierCursor is a per-author vector clock summarizing
// a log: the highest timestamp seen from each author. Timestamps come from
// per-replica clocks, so it is a summary and not a resume point.
package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/c0deZ3R0/go-playlist-kit/version"
)

const (
	KindInteger  = "integer"
	KindFrontier = "frontier"
)

type Cursor interface {
	Kind() string
}

// Codec for marshaling/unmarshaling cursors to a stable wire form.
type Codec interface {
	Kind() string
	Marshal(c Cursor) (json.RawMessage, error)      // returns the Data part only
	Unmarshal(data json.RawMessage) (Cursor, error) // parse Data into a Cursor
}

var (
	registry   = map[string]Codec{}
	registryMu sync.RWMutex
)

func init() {
	Register(integerCodec{})
	Register(frontierCodec{})
}

func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Kind()] = c
}

func Lookup(kind string) (Codec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cc, ok := registry[kind]
	return cc, ok
}

// Maximum allowed size for a wire cursor payload.
const maxWireCursorSize = 64 * 1024

// WireCursor is the typed union for transport (HTTP JSON).
type WireCursor struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func MarshalWire(c Cursor) (*WireCursor, error) {
	if c == nil {
		return nil, errors.New("nil cursor")
	}
	codec, ok := Lookup(c.Kind())
	if !ok {
		return nil, fmt.Errorf("unknown cursor kind: %s", c.Kind())
	}
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	return &WireCursor{Kind: codec.Kind(), Data: data}, nil
}

func ValidateWireCursor(wc *WireCursor) error {
	if wc == nil {
		return errors.New("nil wire cursor")
	}
	if len(wc.Data) > maxWireCursorSize {
		return fmt.Errorf("cursor payload too large: %d bytes", len(wc.Data))
	}
	if _, ok := Lookup(wc.Kind); !ok {
		return fmt.Errorf("unknown cursor kind: %s", wc.Kind)
	}
	return nil
}

func UnmarshalWire(wc *WireCursor) (Cursor, error) {
	if err := ValidateWireCursor(wc); err != nil {
		return nil, err
	}
	codec, _ := Lookup(wc.Kind)
	return codec.Unmarshal(wc.Data)
}

// IntegerCursor is a simple high-water mark (seq).
type IntegerCursor struct {
	Seq uint64
}

var _ version.Version = IntegerCursor{}

func (IntegerCursor) Kind() string { return KindInteger }

// Compare implements version.Version
func (ic IntegerCursor) Compare(other version.Version) int {
	if other == nil {
		return 1
	}
	oc, ok := other.(IntegerCursor)
	if !ok {
		return 0
	}
	switch {
	case ic.Seq < oc.Seq:
		return -1
	case ic.Seq > oc.Seq:
		return 1
	default:
		return 0
	}
}

func (ic IntegerCursor) String() string { return strconv.FormatUint(ic.Seq, 10) }

func (ic IntegerCursor) IsZero() bool { return ic.Seq == 0 }

// ParseInteger parses a decimal sequence number; "" is the zero cursor.
func ParseInteger(s string) (IntegerCursor, error) {
	if s == "" || s == "0" {
		return IntegerCursor{}, nil
	}
	val, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return IntegerCursor{}, fmt.Errorf("invalid cursor '%s': %w", s, err)
	}
	return IntegerCursor{Seq: val}, nil
}

type integerCodec struct{}

func (integerCodec) Kind() string { return KindInteger }

func (integerCodec) Marshal(c Cursor) (json.RawMessage, error) {
	ic, ok := c.(IntegerCursor)
	if !ok {
		return nil, fmt.Errorf("expected IntegerCursor, got %T", c)
	}
	return json.Marshal(ic.Seq)
}

func (integerCodec) Unmarshal(data json.RawMessage) (Cursor, error) {
	var seq uint64
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, err
	}
	return IntegerCursor{Seq: seq}, nil
}

// FrontierCursor carries a per-author vector clock.
type FrontierCursor struct {
	Clock *version.VectorClock
}

func (FrontierCursor) Kind() string { return KindFrontier }

type frontierCodec struct{}

func (frontierCodec) Kind() string { return KindFrontier }

func (frontierCodec) Marshal(c Cursor) (json.RawMessage, error) {
	fc, ok := c.(FrontierCursor)
	if !ok {
		return nil, fmt.Errorf("expected FrontierCursor, got %T", c)
	}
	if fc.Clock == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(fc.Clock)
}

func (frontierCodec) Unmarshal(data json.RawMessage) (Cursor, error) {
	vc, err := version.NewVectorClockFromString(string(data))
	if err != nil {
		return nil, err
	}
	return FrontierCursor{Clock: vc}, nil
}
