// Package orderedlist implements an ordered sequence with O(1) positional
// mutation given a handle and O(1) lookup by value.
//
// Nodes live in a generational arena and are linked by slot index rather than
// by pointer. A Handle names a slot together with the generation it was issued
// for, so a handle to a removed node never aliases a node that later reuses the
// same slot. A multimap from value to handles backs existence checks and
// duplicate-aware removal.
//
// A List is not safe for concurrent use.
package orderedlist

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Handle is a stable reference to a node. The zero Handle refers to nothing.
type Handle struct {
	slot uint32 // slot index + 1
	gen  uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.slot == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.slot-1, h.gen)
}

type node[T comparable] struct {
	value T
	meta  map[string]any
	prev  uint32
	next  uint32
	gen   uint32
	seq   uint64
	live  bool
}

// List is a doubly linked ordered sequence of values with a value index.
// Duplicate values are allowed.
type List[T comparable] struct {
	nodes []node[T]
	free  []uint32
	head  uint32
	tail  uint32
	size  int
	seq   uint64
	index map[T]*bucket
}

// bucket holds the live handles of one value with their insertion sequence.
// first caches the earliest of them; removing it rescans the bucket.
type bucket struct {
	handles  map[Handle]uint64
	first    Handle
	firstSeq uint64
}

func (b *bucket) clone() *bucket {
	c := *b
	c.handles = maps.Clone(b.handles)
	return &c
}

// New returns an empty list.
func New[T comparable]() *List[T] {
	return &List[T]{index: make(map[T]*bucket)}
}

// FromSequence builds a list holding values in order.
func FromSequence[T comparable](values []T) *List[T] {
	l := New[T]()
	for _, v := range values {
		l.Append(v, nil)
	}
	return l
}

// Len returns the number of nodes in the list.
func (l *List[T]) Len() int { return l.size }

// Valid reports whether h refers to a live node of this list.
func (l *List[T]) Valid(h Handle) bool {
	if h.slot == 0 || int(h.slot) > len(l.nodes) {
		return false
	}
	n := &l.nodes[h.slot-1]
	return n.live && n.gen == h.gen
}

// Append inserts v at the tail and returns its handle.
func (l *List[T]) Append(v T, meta map[string]any) Handle {
	s := l.alloc(v, meta)
	l.linkAfter(l.tail, s)
	return l.indexAdd(s)
}

// InsertAt inserts v so that it ends up at position p. A p <= 0 or an empty
// list inserts at the head. Otherwise the list is walked p-1 steps from the
// head, stopping early at the tail, and v is inserted after the reached node,
// so any p >= Len() appends.
func (l *List[T]) InsertAt(v T, p int, meta map[string]any) Handle {
	s := l.alloc(v, meta)
	l.place(s, p)
	return l.indexAdd(s)
}

// Remove unlinks the node referenced by h. It returns false, and does nothing,
// if h is stale or foreign.
func (l *List[T]) Remove(h Handle) bool {
	if !l.Valid(h) {
		return false
	}
	l.unlink(h.slot)
	l.indexDelete(l.nodes[h.slot-1].value, h)
	l.release(h.slot)
	return true
}

// MoveTo repositions the node referenced by h using InsertAt semantics over the
// list without that node. The handle and its metadata are preserved.
func (l *List[T]) MoveTo(h Handle, p int) bool {
	if !l.Valid(h) {
		return false
	}
	l.unlink(h.slot)
	l.place(h.slot, p)
	return true
}

// FindFirst returns the earliest inserted live node holding v in O(1).
func (l *List[T]) FindFirst(v T) (Handle, bool) {
	b := l.index[v]
	if b == nil {
		return Handle{}, false
	}
	return b.first, true
}

// FindAll returns every live node holding v, in insertion order.
func (l *List[T]) FindAll(v T) []Handle {
	b := l.index[v]
	if b == nil {
		return nil
	}
	out := slices.Collect(maps.Keys(b.handles))
	slices.SortFunc(out, func(x, y Handle) int {
		return cmp.Compare(b.handles[x], b.handles[y])
	})
	return out
}

// Contains reports whether any node holds v.
func (l *List[T]) Contains(v T) bool { return l.index[v] != nil }

// Count returns the number of nodes holding v.
func (l *List[T]) Count(v T) int {
	if b := l.index[v]; b != nil {
		return len(b.handles)
	}
	return 0
}

// RemoveValue removes every node holding v and returns how many were removed.
// It costs O(k log k) in the number of duplicates of v.
func (l *List[T]) RemoveValue(v T) int {
	handles := l.FindAll(v)
	// Newest first, so the cached earliest handle is never rescanned.
	for i := len(handles) - 1; i >= 0; i-- {
		l.Remove(handles[i])
	}
	return len(handles)
}

// Value returns the value stored at h.
func (l *List[T]) Value(h Handle) (T, bool) {
	if !l.Valid(h) {
		var zero T
		return zero, false
	}
	return l.nodes[h.slot-1].value, true
}

// Metadata returns a copy of the metadata stored at h.
func (l *List[T]) Metadata(h Handle) map[string]any {
	if !l.Valid(h) {
		return nil
	}
	return maps.Clone(l.nodes[h.slot-1].meta)
}

// MergeMetadata copies meta into the metadata of h, overwriting existing keys.
func (l *List[T]) MergeMetadata(h Handle, meta map[string]any) bool {
	if !l.Valid(h) {
		return false
	}
	n := &l.nodes[h.slot-1]
	if len(meta) == 0 {
		return true
	}
	if n.meta == nil {
		n.meta = make(map[string]any, len(meta))
	}
	maps.Copy(n.meta, meta)
	return true
}

// Front returns the head handle, or the zero Handle for an empty list.
func (l *List[T]) Front() Handle { return l.handle(l.head) }

// Back returns the tail handle, or the zero Handle for an empty list.
func (l *List[T]) Back() Handle { return l.handle(l.tail) }

// Next returns the handle following h.
func (l *List[T]) Next(h Handle) Handle {
	if !l.Valid(h) {
		return Handle{}
	}
	return l.handle(l.nodes[h.slot-1].next)
}

// Prev returns the handle preceding h.
func (l *List[T]) Prev(h Handle) Handle {
	if !l.Valid(h) {
		return Handle{}
	}
	return l.handle(l.nodes[h.slot-1].prev)
}

// Position returns the zero-based position of h, or -1. It walks the chain.
func (l *List[T]) Position(h Handle) int {
	if !l.Valid(h) {
		return -1
	}
	i := 0
	for s := l.head; s != 0; s = l.nodes[s-1].next {
		if s == h.slot {
			return i
		}
		i++
	}
	return -1
}

// Each calls fn for every node in order until fn returns false.
func (l *List[T]) Each(fn func(h Handle, v T, meta map[string]any) bool) {
	for s := l.head; s != 0; {
		n := &l.nodes[s-1]
		next := n.next
		if !fn(Handle{slot: s, gen: n.gen}, n.value, n.meta) {
			return
		}
		s = next
	}
}

// ToSequence returns the values in order.
func (l *List[T]) ToSequence() []T {
	out := make([]T, 0, l.size)
	for s := l.head; s != 0; s = l.nodes[s-1].next {
		out = append(out, l.nodes[s-1].value)
	}
	return out
}

// Equal reports whether both lists hold the same values in the same order.
func (l *List[T]) Equal(other *List[T]) bool {
	if other == nil || l.size != other.size {
		return false
	}
	return slices.Equal(l.ToSequence(), other.ToSequence())
}

// Clone returns a deep copy. Handles issued by l remain valid for the clone.
func (l *List[T]) Clone() *List[T] {
	c := &List[T]{
		nodes: slices.Clone(l.nodes),
		free:  slices.Clone(l.free),
		head:  l.head,
		tail:  l.tail,
		size:  l.size,
		seq:   l.seq,
		index: make(map[T]*bucket, len(l.index)),
	}
	for i := range c.nodes {
		c.nodes[i].meta = maps.Clone(c.nodes[i].meta)
	}
	for v, b := range l.index {
		c.index[v] = b.clone()
	}
	return c
}

// Validate checks the structural invariants: head, tail and size agree with
// the chain, links are symmetric, and every live node has exactly one index
// entry.
func (l *List[T]) Validate() error {
	count := 0
	var prev uint32
	for s := l.head; s != 0; s = l.nodes[s-1].next {
		n := &l.nodes[s-1]
		if !n.live {
			return fmt.Errorf("slot %d in chain is not live", s-1)
		}
		if n.prev != prev {
			return fmt.Errorf("slot %d prev link %d, want %d", s-1, n.prev, prev)
		}
		b := l.index[n.value]
		if b == nil {
			return fmt.Errorf("slot %d missing from index", s-1)
		}
		if _, ok := b.handles[Handle{slot: s, gen: n.gen}]; !ok {
			return fmt.Errorf("slot %d missing from index", s-1)
		}
		prev = s
		count++
		if count > len(l.nodes) {
			return fmt.Errorf("cycle detected")
		}
	}
	if prev != l.tail {
		return fmt.Errorf("tail %d, chain ends at %d", l.tail, prev)
	}
	if count != l.size {
		return fmt.Errorf("size %d, chain length %d", l.size, count)
	}
	indexed := 0
	for v, b := range l.index {
		if len(b.handles) == 0 {
			return fmt.Errorf("empty bucket for %v", v)
		}
		for h, seq := range b.handles {
			if seq < b.firstSeq || (seq == b.firstSeq && h != b.first) {
				return fmt.Errorf("first handle of %v is not the earliest", v)
			}
		}
		if _, ok := b.handles[b.first]; !ok {
			return fmt.Errorf("first handle of %v is not live", v)
		}
		indexed += len(b.handles)
	}
	if indexed != l.size {
		return fmt.Errorf("index holds %d handles, size %d", indexed, l.size)
	}
	return nil
}

func (l *List[T]) handle(s uint32) Handle {
	if s == 0 {
		return Handle{}
	}
	return Handle{slot: s, gen: l.nodes[s-1].gen}
}

func (l *List[T]) alloc(v T, meta map[string]any) uint32 {
	l.seq++
	var s uint32
	if n := len(l.free); n > 0 {
		s = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.nodes = append(l.nodes, node[T]{})
		s = uint32(len(l.nodes))
	}
	n := &l.nodes[s-1]
	n.value = v
	n.meta = maps.Clone(meta)
	n.prev, n.next = 0, 0
	n.seq = l.seq
	n.live = true
	return s
}

func (l *List[T]) release(s uint32) {
	n := &l.nodes[s-1]
	var zero T
	n.value = zero
	n.meta = nil
	n.live = false
	n.gen++
	l.free = append(l.free, s)
}

func (l *List[T]) indexAdd(s uint32) Handle {
	n := &l.nodes[s-1]
	h := Handle{slot: s, gen: n.gen}
	b := l.index[n.value]
	if b == nil {
		// Sequences only grow, so a later add never becomes first.
		b = &bucket{handles: make(map[Handle]uint64, 1), first: h, firstSeq: n.seq}
		l.index[n.value] = b
	}
	b.handles[h] = n.seq
	return h
}

func (l *List[T]) indexDelete(v T, h Handle) {
	b := l.index[v]
	delete(b.handles, h)
	if len(b.handles) == 0 {
		delete(l.index, v)
		return
	}
	if h != b.first {
		return
	}
	found := false
	for other, seq := range b.handles {
		if !found || seq < b.firstSeq {
			b.first, b.firstSeq, found = other, seq, true
		}
	}
}

// place links an unlinked slot according to InsertAt semantics.
func (l *List[T]) place(s uint32, p int) {
	if p <= 0 || l.head == 0 {
		l.linkAfter(0, s)
		return
	}
	cur := l.head
	for i := 0; i < p-1 && l.nodes[cur-1].next != 0; i++ {
		cur = l.nodes[cur-1].next
	}
	l.linkAfter(cur, s)
}

// linkAfter links s after at; at == 0 links s at the head.
func (l *List[T]) linkAfter(at, s uint32) {
	n := &l.nodes[s-1]
	var next uint32
	if at == 0 {
		next = l.head
		l.head = s
	} else {
		next = l.nodes[at-1].next
		l.nodes[at-1].next = s
	}
	n.prev = at
	n.next = next
	if next == 0 {
		l.tail = s
	} else {
		l.nodes[next-1].prev = s
	}
	l.size++
}

func (l *List[T]) unlink(s uint32) {
	n := &l.nodes[s-1]
	if n.prev == 0 {
		l.head = n.next
	} else {
		l.nodes[n.prev-1].next = n.next
	}
	if n.next == 0 {
		l.tail = n.prev
	} else {
		l.nodes[n.next-1].prev = n.prev
	}
	n.prev, n.next = 0, 0
	l.size--
}
