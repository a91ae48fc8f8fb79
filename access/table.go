// Package access holds playlist roles and privacy, and the gate every mutation
// passes before an event is appended.
package access

import (
	"fmt"
	"maps"
	"sync"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
)

// Role is a user's standing on one playlist.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleOwner, RoleCollaborator, RoleViewer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanEdit reports whether the role may mutate a playlist.
func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleCollaborator }

// Privacy is a playlist's visibility level.
type Privacy string

const (
	PrivacyPrivate  Privacy = "private"
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
)

// ParsePrivacy validates a privacy level. The empty string means private.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(s); p {
	case "":
		return PrivacyPrivate, nil
	case PrivacyPrivate, PrivacyPublic, PrivacyUnlisted:
		return p, nil
	}
	return "", fmt.Errorf("unknown privacy level %q", s)
}

// Table maps playlists to member roles and privacy levels. Each playlist has
// at most one owner. Table is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	roles   map[string]map[string]Role
	privacy map[string]Privacy
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		roles:   make(map[string]map[string]Role),
		privacy: make(map[string]Privacy),
	}
}

// CreatePlaylist registers a playlist with owner as its single owner.
func (t *Table) CreatePlaylist(playlistID, owner string, privacy Privacy) error {
	if playlistID == "" || owner == "" {
		return errors.NewValidationError(errors.OpCreatePlaylist, fmt.Errorf("playlist and owner are required"))
	}
	if privacy == "" {
		privacy = PrivacyPrivate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.roles[playlistID]; ok {
		return errors.NewWithComponent(errors.OpCreatePlaylist, "access", errors.KindAlreadyExists, nil).
			With("playlist_id", playlistID)
	}
	t.roles[playlistID] = map[string]Role{owner: RoleOwner}
	t.privacy[playlistID] = privacy
	return nil
}

// Exists reports whether the playlist is registered.
func (t *Table) Exists(playlistID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.roles[playlistID]
	return ok
}

// Role returns the user's role on the playlist.
func (t *Table) Role(userID, playlistID string) (Role, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.roles[playlistID][userID]
	return r, ok
}

// CanEdit reports whether the user is the owner or a collaborator.
func (t *Table) CanEdit(userID, playlistID string) bool {
	r, ok := t.Role(userID, playlistID)
	return ok && r.CanEdit()
}

// CanView reports whether the playlist is public or the user holds any role on
// it. Unlisted playlists are not viewable without a role.
func (t *Table) CanView(userID, playlistID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.privacy[playlistID] == PrivacyPublic {
		return true
	}
	_, ok := t.roles[playlistID][userID]
	return ok
}

// Grant gives the user a role. Granting RoleOwner transfers ownership.
func (t *Table) Grant(playlistID, userID string, role Role) error {
	if role == RoleOwner {
		return t.TransferOwnership(playlistID, userID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	members, err := t.members(errors.OpGrant, playlistID)
	if err != nil {
		return err
	}
	if members[userID] == RoleOwner {
		return errors.NewValidationError(errors.OpGrant,
			fmt.Errorf("owner %s must transfer ownership before changing role", userID))
	}
	members[userID] = role
	return nil
}

// Revoke removes the user's role. The owner cannot be revoked.
func (t *Table) Revoke(playlistID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, err := t.members(errors.OpGrant, playlistID)
	if err != nil {
		return err
	}
	if members[userID] == RoleOwner {
		return errors.NewValidationError(errors.OpGrant, fmt.Errorf("cannot revoke owner %s", userID))
	}
	delete(members, userID)
	return nil
}

// TransferOwnership makes newOwner the owner and demotes the previous owner to
// collaborator in the same step.
func (t *Table) TransferOwnership(playlistID, newOwner string) error {
	if newOwner == "" {
		return errors.NewValidationError(errors.OpGrant, fmt.Errorf("new owner is required"))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	members, err := t.members(errors.OpGrant, playlistID)
	if err != nil {
		return err
	}
	for u, r := range members {
		if r == RoleOwner {
			members[u] = RoleCollaborator
		}
	}
	members[newOwner] = RoleOwner
	return nil
}

// SetPrivacy changes the playlist's visibility.
func (t *Table) SetPrivacy(playlistID string, privacy Privacy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.members(errors.OpGrant, playlistID); err != nil {
		return err
	}
	t.privacy[playlistID] = privacy
	return nil
}

// Privacy returns the playlist's visibility, private when unknown.
func (t *Table) Privacy(playlistID string) Privacy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.privacy[playlistID]; ok {
		return p
	}
	return PrivacyPrivate
}

// DeletePlaylist forgets the playlist. It reports whether it existed.
func (t *Table) DeletePlaylist(playlistID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.roles[playlistID]
	delete(t.roles, playlistID)
	delete(t.privacy, playlistID)
	return ok
}

// RemoveUser drops every role held by the user and returns how many playlists
// were affected. Playlists the user owned are left without an owner.
func (t *Table) RemoveUser(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, members := range t.roles {
		if _, ok := members[userID]; ok {
			delete(members, userID)
			n++
		}
	}
	return n
}

// Owner returns the playlist's owner.
func (t *Table) Owner(playlistID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for u, r := range t.roles[playlistID] {
		if r == RoleOwner {
			return u, true
		}
	}
	return "", false
}

// Members returns a copy of the playlist's roles.
func (t *Table) Members(playlistID string) map[string]Role {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.roles[playlistID])
}

// members must be called with t.mu held.
func (t *Table) members(op errors.Operation, playlistID string) (map[string]Role, error) {
	m, ok := t.roles[playlistID]
	if !ok {
		return nil, errors.NewWithComponent(op, "access", errors.KindNotFound, nil).With("playlist_id", playlistID)
	}
	return m, nil
}
