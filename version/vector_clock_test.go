package version

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorClock(t *testing.T) {
	vc := NewVectorClock()
	assert.True(t, vc.IsZero())
	assert.Equal(t, 0, vc.Size())
	assert.Equal(t, "{}", vc.String())
}

func TestNewVectorClockFromString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		expected    map[string]uint64
	}{
		{"empty string", "", false, map[string]uint64{}},
		{"empty JSON object", "{}", false, map[string]uint64{}},
		{"single node", `{"user-1":5}`, false, map[string]uint64{"user-1": 5}},
		{"multiple nodes", `{"user-1":5,"user-2":3}`, false, map[string]uint64{"user-1": 5, "user-2": 3}},
		{"invalid JSON", `{"user-1":}`, true, nil},
		{"empty node id", `{"":1}`, true, nil},
		{"negative value", `{"user-1":-1}`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc, err := NewVectorClockFromString(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vc.All())
		})
	}
}

func TestObserve(t *testing.T) {
	vc := NewVectorClock()
	require.NoError(t, vc.Observe("a", 2))
	assert.Equal(t, uint64(2), vc.Get("a"))

	require.NoError(t, vc.Observe("a", 1))
	assert.Equal(t, uint64(2), vc.Get("a"), "observe never lowers a clock")
	require.NoError(t, vc.Observe("a", 9))
	assert.Equal(t, uint64(9), vc.Get("a"))
	require.NoError(t, vc.Observe("b", 0))
	assert.Equal(t, 2, vc.Size())

	assert.Error(t, vc.Observe("", 1))
	assert.Error(t, vc.Observe(strings.Repeat("x", MaxNodeIDLength+1), 1))
}

func TestMerge(t *testing.T) {
	a := NewVectorClockFromMap(map[string]uint64{"a": 2, "b": 1})
	b := NewVectorClockFromMap(map[string]uint64{"a": 1, "c": 2})
	require.NoError(t, a.Merge(b))
	assert.Equal(t, map[string]uint64{"a": 2, "b": 1, "c": 2}, a.All())
	require.NoError(t, a.Merge(nil))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]uint64
		want int
	}{
		{"equal", map[string]uint64{"a": 1}, map[string]uint64{"a": 1}, 0},
		{"before", map[string]uint64{"a": 1}, map[string]uint64{"a": 2}, -1},
		{"after", map[string]uint64{"a": 3, "b": 1}, map[string]uint64{"a": 2}, 1},
		{"missing node counts as zero", map[string]uint64{}, map[string]uint64{"b": 1}, -1},
		{"concurrent", map[string]uint64{"a": 2, "b": 1}, map[string]uint64{"a": 1, "b": 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := NewVectorClockFromMap(tt.a), NewVectorClockFromMap(tt.b)
			assert.Equal(t, tt.want, a.Compare(b))
			assert.Equal(t, -tt.want, b.Compare(a))
		})
	}
}

func TestJSONRoundTripAndClone(t *testing.T) {
	vc := NewVectorClockFromMap(map[string]uint64{"b": 2, "a": 1})
	assert.Equal(t, `{"a":1,"b":2}`, vc.String())

	data, err := json.Marshal(vc)
	require.NoError(t, err)
	var decoded VectorClock
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, vc.IsEqual(&decoded))

	clone := vc.Clone()
	require.NoError(t, clone.Observe("a", 5))
	assert.Equal(t, uint64(1), vc.Get("a"))
}

func TestLamport(t *testing.T) {
	l := NewLamport(0)
	assert.Equal(t, int64(1), l.Tick())
	assert.Equal(t, int64(2), l.Tick())

	l.Observe(10)
	assert.Equal(t, int64(10), l.Now())
	assert.Equal(t, int64(11), l.Tick())

	l.Observe(3)
	assert.Equal(t, int64(12), l.Tick())
}

func TestLamportConcurrentTicksAreUnique(t *testing.T) {
	l := NewLamport(100)
	const n = 200
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- l.Tick()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for ts := range seen {
		assert.Greater(t, ts, int64(100))
		unique[ts] = true
	}
	assert.Len(t, unique, n)
}
