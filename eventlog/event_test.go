package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditEventValidate(t *testing.T) {
	valid := ev("a", "u1", 1, OpAdd, "x")
	require.NoError(t, valid.Validate())

	tests := map[string]func(*EditEvent){
		"missing opId":   func(e *EditEvent) { e.OpID = "" },
		"missing userId": func(e *EditEvent) { e.UserID = "" },
		"missing itemId": func(e *EditEvent) { e.ItemID = "" },
		"bad operation":  func(e *EditEvent) { e.Operation = "shuffle" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			e := valid
			mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" Move ")
	require.NoError(t, err)
	assert.Equal(t, OpMove, op)

	_, err = ParseOperation("shuffle")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.Negative(t, Compare(ev("b", "u", 1, OpAdd, "x"), ev("a", "u", 2, OpAdd, "x")))
	assert.Negative(t, Compare(ev("a", "u", 2, OpAdd, "x"), ev("b", "u", 2, OpAdd, "x")))
	assert.Zero(t, Compare(ev("a", "u", 2, OpAdd, "x"), ev("a", "v", 2, OpMove, "y")))
}

func TestPositionHelpers(t *testing.T) {
	e := ev("a", "u1", 1, OpMove, "x")
	assert.False(t, e.HasPosition())
	assert.Equal(t, 7, e.PositionOr(7))

	e.Position = At(2)
	assert.True(t, e.HasPosition())
	assert.Equal(t, 2, e.PositionOr(7))
	assert.Contains(t, e.String(), "pos=2")
}
