package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/orderedlist"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable()
	require.NoError(t, tbl.CreatePlaylist("p1", "alice", PrivacyPrivate))
	require.NoError(t, tbl.Grant("p1", "bob", RoleCollaborator))
	require.NoError(t, tbl.Grant("p1", "carol", RoleViewer))
	return tbl
}

func TestTableRoles(t *testing.T) {
	tbl := newTable(t)

	assert.True(t, tbl.CanEdit("alice", "p1"))
	assert.True(t, tbl.CanEdit("bob", "p1"))
	assert.False(t, tbl.CanEdit("carol", "p1"))
	assert.False(t, tbl.CanEdit("dave", "p1"))
	assert.False(t, tbl.CanEdit("alice", "p2"))

	owner, ok := tbl.Owner("p1")
	require.True(t, ok)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, map[string]Role{"alice": RoleOwner, "bob": RoleCollaborator, "carol": RoleViewer}, tbl.Members("p1"))
}

func TestCreatePlaylistTwice(t *testing.T) {
	tbl := newTable(t)
	err := tbl.CreatePlaylist("p1", "mallory", PrivacyPublic)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	err = tbl.CreatePlaylist("", "mallory", PrivacyPublic)
	assert.True(t, errors.IsKind(err, errors.KindValidationFailure))
}

func TestCanView(t *testing.T) {
	tbl := newTable(t)
	assert.True(t, tbl.CanView("carol", "p1"))
	assert.False(t, tbl.CanView("dave", "p1"))

	require.NoError(t, tbl.SetPrivacy("p1", PrivacyUnlisted))
	assert.False(t, tbl.CanView("dave", "p1"))

	require.NoError(t, tbl.SetPrivacy("p1", PrivacyPublic))
	assert.True(t, tbl.CanView("dave", "p1"))
	assert.False(t, tbl.CanEdit("dave", "p1"), "public does not grant edit")
	assert.Equal(t, PrivacyPublic, tbl.Privacy("p1"))
	assert.Equal(t, PrivacyPrivate, tbl.Privacy("unknown"))
}

func TestTransferOwnership(t *testing.T) {
	tbl := newTable(t)
	require.NoError(t, tbl.TransferOwnership("p1", "carol"))

	owner, _ := tbl.Owner("p1")
	assert.Equal(t, "carol", owner)
	r, _ := tbl.Role("alice", "p1")
	assert.Equal(t, RoleCollaborator, r)

	owners := 0
	for _, role := range tbl.Members("p1") {
		if role == RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)

	require.NoError(t, tbl.Grant("p1", "dave", RoleOwner))
	owner, _ = tbl.Owner("p1")
	assert.Equal(t, "dave", owner)
}

func TestGrantAndRevokeGuards(t *testing.T) {
	tbl := newTable(t)

	err := tbl.Grant("p1", "alice", RoleViewer)
	assert.True(t, errors.IsKind(err, errors.KindValidationFailure))

	err = tbl.Revoke("p1", "alice")
	assert.True(t, errors.IsKind(err, errors.KindValidationFailure))

	require.NoError(t, tbl.Revoke("p1", "bob"))
	assert.False(t, tbl.CanEdit("bob", "p1"))

	assert.ErrorIs(t, tbl.Grant("nope", "bob", RoleViewer), errors.ErrNotFound)
	assert.ErrorIs(t, tbl.SetPrivacy("nope", PrivacyPublic), errors.ErrNotFound)
}

func TestDeleteAndRemoveUser(t *testing.T) {
	tbl := newTable(t)
	require.NoError(t, tbl.CreatePlaylist("p2", "bob", PrivacyPublic))

	assert.Equal(t, 2, tbl.RemoveUser("bob"))
	assert.False(t, tbl.CanEdit("bob", "p1"))
	_, ok := tbl.Owner("p2")
	assert.False(t, ok)

	assert.True(t, tbl.DeletePlaylist("p1"))
	assert.False(t, tbl.Exists("p1"))
	assert.False(t, tbl.DeletePlaylist("p1"))
}

func TestParse(t *testing.T) {
	r, err := ParseRole("viewer")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, r)
	_, err = ParseRole("admin")
	assert.Error(t, err)

	p, err := ParsePrivacy("")
	require.NoError(t, err)
	assert.Equal(t, PrivacyPrivate, p)
	_, err = ParsePrivacy("secret")
	assert.Error(t, err)
}

func TestGateCheck(t *testing.T) {
	tbl := newTable(t)
	gate := NewGate(tbl, catalog.NewBlocklist("banned"), 3)
	state := orderedlist.FromSequence([]string{"a", "b"})

	req := func(user string, op eventlog.Operation, item string, pos *int) Request {
		return Request{UserID: user, PlaylistID: "p1", Operation: op, ItemID: item, Position: pos}
	}

	tests := []struct {
		name string
		req  Request
		kind errors.Kind
	}{
		{"viewer cannot add", req("carol", eventlog.OpAdd, "c", nil), errors.KindPermissionDenied},
		{"stranger cannot remove", req("dave", eventlog.OpRemove, "a", nil), errors.KindPermissionDenied},
		{"blocked item", req("bob", eventlog.OpAdd, "banned", nil), errors.KindItemUnavailable},
		{"duplicate", req("bob", eventlog.OpAdd, "a", nil), errors.KindDuplicateItem},
		{"add position too far", req("bob", eventlog.OpAdd, "c", eventlog.At(3)), errors.KindInvalidPosition},
		{"add negative position", req("bob", eventlog.OpAdd, "c", eventlog.At(-1)), errors.KindInvalidPosition},
		{"remove absent", req("bob", eventlog.OpRemove, "z", nil), errors.KindItemNotFound},
		{"move absent", req("bob", eventlog.OpMove, "z", eventlog.At(0)), errors.KindItemNotFound},
		{"move out of range", req("bob", eventlog.OpMove, "a", eventlog.At(2)), errors.KindInvalidPosition},
		{"update absent", req("alice", eventlog.OpUpdate, "z", nil), errors.KindItemNotFound},
		{"unknown operation", req("alice", "shuffle", "a", nil), errors.KindValidationFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(tt.req, state)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}

	accepted := []Request{
		req("bob", eventlog.OpAdd, "c", nil),
		req("bob", eventlog.OpAdd, "c", eventlog.At(2)),
		req("alice", eventlog.OpRemove, "a", nil),
		req("alice", eventlog.OpMove, "a", eventlog.At(1)),
		req("alice", eventlog.OpMove, "a", nil),
		req("bob", eventlog.OpUpdate, "b", nil),
	}
	for _, r := range accepted {
		assert.NoError(t, gate.Check(r, state), "%+v", r)
	}
}

func TestGateCapacity(t *testing.T) {
	tbl := newTable(t)
	gate := NewGate(tbl, nil, 2)
	full := orderedlist.FromSequence([]string{"a", "b"})

	err := gate.Check(Request{UserID: "alice", PlaylistID: "p1", Operation: eventlog.OpAdd, ItemID: "c"}, full)
	assert.ErrorIs(t, err, errors.ErrCapacityExceeded)

	unlimited := NewGate(tbl, nil, 0)
	assert.NoError(t, unlimited.Check(Request{UserID: "alice", PlaylistID: "p1", Operation: eventlog.OpAdd, ItemID: "c"}, full))
	assert.Equal(t, 0, unlimited.Capacity())
}
