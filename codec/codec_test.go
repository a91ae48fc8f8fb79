package codec

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

func sample() Batch {
	return Batch{
		PlaylistID: "p1",
		Events: []eventlog.EditEvent{
			{OpID: "op1", UserID: "u1", PlaylistID: "p1", Timestamp: 1, Operation: eventlog.OpAdd, ItemID: "trackA"},
			{OpID: "op2", UserID: "u1", PlaylistID: "p1", Timestamp: 2, Operation: eventlog.OpMove, ItemID: "trackA",
				Position: eventlog.At(0), Metadata: map[string]any{"note": "intro"}},
		},
	}
}

func TestJSONDecodeSchema(t *testing.T) {
	data := []byte(`{
		"playlistId": "p1",
		"events": [
			{"opId": "op1", "userId": "u1", "timestamp": 10, "operation": "add", "itemId": "trackA", "position": 0},
			{"opId": "op2", "userId": "u2", "timestamp": 11, "operation": "update", "itemId": "trackA", "metadata": {"rating": 5}}
		]
	}`)

	b, err := JSON{}.Decode(data)
	require.NoError(t, err)
	require.Len(t, b.Events, 2)
	assert.Equal(t, "p1", b.Events[0].PlaylistID, "playlist filled from batch")
	assert.Equal(t, 0, *b.Events[0].Position)
	assert.Nil(t, b.Events[1].Position)
	assert.Equal(t, float64(5), b.Events[1].Metadata["rating"])
}

func TestJSONEncodeDecode(t *testing.T) {
	data, err := JSON{}.Encode(sample())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"opId":"op1"`)
	assert.NotContains(t, string(data), `"position":null`)

	b, err := JSON{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sample().Events[0], b.Events[0])
	assert.Equal(t, 0, *b.Events[1].Position)

	empty, err := JSON{}.Encode(Batch{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(empty))
}

func TestYAMLDecode(t *testing.T) {
	data := []byte(`
playlistId: p1
events:
  - opId: op1
    userId: u1
    timestamp: 1
    operation: add
    itemId: trackA
  - opId: op2
    userId: u1
    timestamp: 2
    operation: move
    itemId: trackA
    position: 0
    metadata:
      note: intro
`)
	b, err := YAML{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sample(), b)

	out, err := YAML{}.Encode(b)
	require.NoError(t, err)
	again, err := YAML{}.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]struct {
		codec Codec
		data  string
	}{
		"json syntax":        {JSON{}, `{"events": [`},
		"json unknown field": {JSON{}, `{"events": [], "extra": 1}`},
		"json bad operation": {JSON{}, `{"events": [{"opId":"a","userId":"u","timestamp":1,"operation":"shuffle","itemId":"x"}]}`},
		"json missing opId":  {JSON{}, `{"events": [{"userId":"u","timestamp":1,"operation":"add","itemId":"x"}]}`},
		"json wrong playlist": {JSON{}, `{"playlistId":"p1","events": [
			{"opId":"a","userId":"u","playlistId":"p2","timestamp":1,"operation":"add","itemId":"x"}]}`},
		"yaml unknown field": {YAML{}, "events: []\nbogus: true\n"},
		"yaml missing item":  {YAML{}, "events:\n  - opId: a\n    userId: u\n    operation: add\n"},
		"yaml empty":         {YAML{}, ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.codec.Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidationFailure), "got %v", err)
			var pe *errors.PlaylistError
			require.True(t, stderrors.As(err, &pe))
			assert.Equal(t, "codec", pe.Component)
			assert.Equal(t, errors.OpDecode, pe.Op)
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{KindJSON, KindYAML}, DefaultRegistry.Kinds())

	c, ok := Get(KindYAML)
	require.True(t, ok)
	assert.Equal(t, KindYAML, c.Kind())

	c, ok = ForContentType("application/json; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, KindJSON, c.Kind())

	c, ok = ForContentType("text/yaml")
	require.True(t, ok)
	assert.Equal(t, KindYAML, c.Kind())

	_, ok = ForContentType("text/csv")
	assert.False(t, ok)
	_, ok = ForContentType(";;")
	assert.False(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Register(JSON{})
		}()
		go func() {
			defer wg.Done()
			registry.Get(KindJSON)
			registry.Kinds()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{KindJSON}, registry.Kinds())
}
