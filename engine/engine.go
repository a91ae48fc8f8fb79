// Package engine hosts collaborative playlists: it owns the permission table,
// the availability catalog, the capacity policy and one event log per
// playlist, and exposes the gated mutation entry points.
//
// Each playlist's log is guarded by its own mutex, so independent playlists
// proceed in parallel while edits to one playlist are applied one at a time.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c0deZ3R0/go-playlist-kit/access"
	"github.com/c0deZ3R0/go-playlist-kit/catalog"
	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
	"github.com/c0deZ3R0/go-playlist-kit/replay"
	"github.com/c0deZ3R0/go-playlist-kit/storage/memory"
	"github.com/c0deZ3R0/go-playlist-kit/version"
)

// Engine is safe for concurrent use.
type Engine struct {
	store     eventlog.Store
	catalog   catalog.Availability
	table     *access.Table
	gate      *access.Gate
	capacity  int
	logger    *logging.Logger
	notifier  Notifier
	metrics   MetricsCollector
	clock     *version.Lamport
	replicaID string
	newID     func() string
	resolver  eventlog.ConflictResolver

	mu        sync.RWMutex
	playlists map[string]*playlist
}

type stateKey struct {
	gen     uint64
	catalog uint64
}

type playlist struct {
	mu       sync.Mutex
	log      *eventlog.Log
	state    *replay.State
	stateKey stateKey
}

// New builds an engine. Without options it keeps events in memory, blocks no
// items and has no capacity limit.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog:   catalog.NewBlocklist(),
		table:     access.NewTable(),
		logger:    logging.Discard(),
		metrics:   NoOpMetricsCollector{},
		clock:     version.NewLamport(0),
		replicaID: "local",
		newID:     uuid.NewString,
		resolver:  eventlog.RemoveWinsResolver{},
		playlists: make(map[string]*playlist),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, errors.NewWithComponent(errors.OpCreatePlaylist, "engine", errors.KindValidationFailure, err)
		}
	}
	if e.store == nil {
		e.store = memory.New()
	}
	e.gate = access.NewGate(e.table, e.catalog, e.capacity)
	e.logger = &logging.Logger{Logger: e.logger.WithComponent(logging.Component("engine")).
		With(slog.String("replica_id", e.replicaID))}
	return e, nil
}

// Permissions returns the permission table.
func (e *Engine) Permissions() *access.Table { return e.table }

// Catalog returns the availability provider.
func (e *Engine) Catalog() catalog.Availability { return e.catalog }

// ReplicaID returns the configured replica name.
func (e *Engine) ReplicaID() string { return e.replicaID }

// Close closes the store.
func (e *Engine) Close() error { return e.store.Close() }

// CreatePlaylist registers a playlist owned by owner and loads any events the
// store already holds for it.
func (e *Engine) CreatePlaylist(ctx context.Context, playlistID, owner string, privacy access.Privacy) error {
	if err := e.table.CreatePlaylist(playlistID, owner, privacy); err != nil {
		return err
	}
	if _, err := e.lookup(ctx, playlistID); err != nil {
		e.table.DeletePlaylist(playlistID)
		return err
	}
	e.logger.Info("playlist created",
		slog.String("playlist_id", playlistID),
		slog.String("owner", owner),
		slog.String("privacy", string(privacy)),
	)
	e.notify(ctx, playlistID, eventlog.EditEvent{UserID: owner, PlaylistID: playlistID}, KindPlaylistCreated)
	return nil
}

// DeletePlaylist removes a playlist, its permissions and its events. Only the
// owner may delete.
func (e *Engine) DeletePlaylist(ctx context.Context, userID, playlistID string) error {
	if err := e.requireOwner(errors.OpDeletePlaylist, userID, playlistID); err != nil {
		return err
	}
	n, err := e.store.DeletePlaylist(ctx, playlistID)
	if err != nil {
		e.logger.LogError(ctx, err, "failed to delete playlist events", slog.String("playlist_id", playlistID))
		return err
	}
	e.table.DeletePlaylist(playlistID)
	e.Invalidate(playlistID)

	e.logger.Info("playlist deleted", slog.String("playlist_id", playlistID), slog.Int("events", n))
	e.notify(ctx, playlistID, eventlog.EditEvent{UserID: userID, PlaylistID: playlistID}, KindPlaylistDeleted)
	return nil
}

// SetRole lets the owner grant, change or (with an empty role) revoke a
// member's role. Granting owner transfers ownership.
func (e *Engine) SetRole(ctx context.Context, actorID, playlistID, userID string, role access.Role) error {
	if err := e.requireOwner(errors.OpGrant, actorID, playlistID); err != nil {
		return err
	}
	if role == "" {
		return e.table.Revoke(playlistID, userID)
	}
	return e.table.Grant(playlistID, userID, role)
}

// SetPrivacy lets the owner change the playlist's visibility.
func (e *Engine) SetPrivacy(ctx context.Context, actorID, playlistID string, privacy access.Privacy) error {
	if err := e.requireOwner(errors.OpGrant, actorID, playlistID); err != nil {
		return err
	}
	return e.table.SetPrivacy(playlistID, privacy)
}

// Open loads the playlist's log from the store if it is not loaded yet.
func (e *Engine) Open(ctx context.Context, playlistID string) error {
	if err := e.requireExists(errors.OpLoad, playlistID); err != nil {
		return err
	}
	_, err := e.lookup(ctx, playlistID)
	return err
}

// Invalidate drops the loaded log of playlistID, or of every playlist when
// playlistID is empty. The next access reloads from the store.
func (e *Engine) Invalidate(playlistID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if playlistID == "" {
		clear(e.playlists)
		return
	}
	delete(e.playlists, playlistID)
}

// Refresh reacts to a change reported by another replica. The loaded log of
// playlistID is dropped unless it already holds opID, so echoes of this
// engine's own appends keep the log and its undo stacks. Rewrites (undo,
// redo, merge) must be reported with an empty opID, which always drops; see
// EchoOpID. An empty playlistID refreshes every playlist.
func (e *Engine) Refresh(playlistID, opID string) bool {
	if playlistID == "" {
		e.Invalidate("")
		return true
	}
	e.mu.RLock()
	p := e.playlists[playlistID]
	e.mu.RUnlock()
	if p == nil {
		return false
	}
	if opID != "" {
		p.mu.Lock()
		known := p.log.Contains(opID)
		p.mu.Unlock()
		if known {
			e.logger.Trace(context.Background(), "ignoring echo", slog.String("playlist_id", playlistID), slog.String("op_id", opID))
			return false
		}
	}
	e.Invalidate(playlistID)
	e.logger.Debug("playlist refreshed", slog.String("playlist_id", playlistID), slog.String("op_id", opID))
	return true
}

// AddTrack appends itemID, or inserts it at position when one is given.
func (e *Engine) AddTrack(ctx context.Context, userID, playlistID, itemID string, position *int, metadata map[string]any) (eventlog.EditEvent, error) {
	return e.mutate(ctx, access.Request{
		UserID: userID, PlaylistID: playlistID, Operation: eventlog.OpAdd, ItemID: itemID, Position: position,
	}, metadata)
}

// RemoveTrack removes every occurrence of itemID.
func (e *Engine) RemoveTrack(ctx context.Context, userID, playlistID, itemID string) (eventlog.EditEvent, error) {
	return e.mutate(ctx, access.Request{
		UserID: userID, PlaylistID: playlistID, Operation: eventlog.OpRemove, ItemID: itemID,
	}, nil)
}

// MoveTrack moves itemID to position, or to the end when position is nil.
func (e *Engine) MoveTrack(ctx context.Context, userID, playlistID, itemID string, position *int) (eventlog.EditEvent, error) {
	return e.mutate(ctx, access.Request{
		UserID: userID, PlaylistID: playlistID, Operation: eventlog.OpMove, ItemID: itemID, Position: position,
	}, nil)
}

// UpdateTrack merges metadata into itemID's metadata.
func (e *Engine) UpdateTrack(ctx context.Context, userID, playlistID, itemID string, metadata map[string]any) (eventlog.EditEvent, error) {
	return e.mutate(ctx, access.Request{
		UserID: userID, PlaylistID: playlistID, Operation: eventlog.OpUpdate, ItemID: itemID,
	}, metadata)
}

func (e *Engine) mutate(ctx context.Context, req access.Request, metadata map[string]any) (eventlog.EditEvent, error) {
	start := time.Now()
	ev, err := e.applyMutation(ctx, req, metadata)
	e.metrics.RecordMutation(string(req.Operation), time.Since(start), string(errors.KindOf(err)))

	log := e.logger.WithPlaylist(req.PlaylistID)
	if err != nil {
		if errors.IsKind(err, errors.KindStorageFailure) {
			log.LogError(ctx, err, "failed to persist mutation")
		} else {
			log.DebugContext(ctx, "mutation rejected",
				slog.String("user_id", req.UserID),
				slog.String("operation", string(req.Operation)),
				slog.String("kind", string(errors.KindOf(err))),
			)
		}
		return eventlog.EditEvent{}, err
	}

	log.DebugContext(ctx, "mutation accepted", slog.String("event", ev.String()))
	e.notify(ctx, req.PlaylistID, ev, kindOf(req.Operation))
	return ev, nil
}

func (e *Engine) applyMutation(ctx context.Context, req access.Request, metadata map[string]any) (eventlog.EditEvent, error) {
	if err := e.requireExists(access.OperationOf(req.Operation), req.PlaylistID); err != nil {
		return eventlog.EditEvent{}, err
	}
	p, err := e.lookup(ctx, req.PlaylistID)
	if err != nil {
		return eventlog.EditEvent{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state := e.currentState(p)
	if err := e.gate.Check(req, state); err != nil {
		return eventlog.EditEvent{}, err
	}

	ev := eventlog.EditEvent{
		OpID:       e.newID(),
		UserID:     req.UserID,
		PlaylistID: req.PlaylistID,
		Timestamp:  e.clock.Tick(),
		Operation:  req.Operation,
		ItemID:     req.ItemID,
		Metadata:   maps.Clone(metadata),
	}
	if req.Position != nil {
		ev.Position = eventlog.At(*req.Position)
	}

	if err := e.store.Append(ctx, ev); err != nil {
		return eventlog.EditEvent{}, err
	}
	p.log.Append(ev)

	// The cached state was current before the append, so one step keeps it current.
	replay.Apply(p.state, ev, replay.WithAvailability(e.catalog))
	p.stateKey.gen = p.log.Generation()
	return ev, nil
}

// Undo erases userID's most recent surviving event on the playlist.
func (e *Engine) Undo(ctx context.Context, userID, playlistID string) (eventlog.EditEvent, error) {
	return e.rewrite(ctx, errors.OpUndo, userID, playlistID, KindUndo, func(l *eventlog.Log) (eventlog.EditEvent, error) {
		return l.Undo(userID)
	})
}

// Redo re-appends userID's most recently undone event on the playlist.
func (e *Engine) Redo(ctx context.Context, userID, playlistID string) (eventlog.EditEvent, error) {
	return e.rewrite(ctx, errors.OpRedo, userID, playlistID, KindRedo, func(l *eventlog.Log) (eventlog.EditEvent, error) {
		return l.Redo(userID)
	})
}

// rewrite applies step to a copy of the log, persists the copy and swaps it
// in. A failed step or store write leaves the loaded log unchanged.
func (e *Engine) rewrite(ctx context.Context, op errors.Operation, userID, playlistID, kind string,
	step func(*eventlog.Log) (eventlog.EditEvent, error)) (eventlog.EditEvent, error) {
	if err := e.requireEditor(op, userID, playlistID); err != nil {
		return eventlog.EditEvent{}, err
	}
	p, err := e.lookup(ctx, playlistID)
	if err != nil {
		return eventlog.EditEvent{}, err
	}

	ev, err := func() (eventlog.EditEvent, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		next := p.log.Clone()
		ev, err := step(next)
		if err != nil {
			return ev, err
		}
		if err := e.persist(ctx, op, playlistID, next); err != nil {
			return eventlog.EditEvent{}, err
		}
		p.log = next
		return ev, nil
	}()

	log := e.logger.WithPlaylist(playlistID)
	switch {
	case errors.IsNonFatal(err):
		log.DebugContext(ctx, err.Error(), slog.String("user_id", userID))
		return eventlog.EditEvent{}, err
	case err != nil:
		return eventlog.EditEvent{}, err
	}

	log.DebugContext(ctx, "log rewritten", slog.String("operation", string(op)), slog.String("event", ev.String()))
	e.notify(ctx, playlistID, ev, kind)
	return ev, nil
}

// persist replaces the stored log of playlistID with next.
func (e *Engine) persist(ctx context.Context, op errors.Operation, playlistID string, next *eventlog.Log) error {
	return e.logger.WithPlaylist(playlistID).LogOperation(ctx, logging.Operation(op), logging.Component("engine"), func() error {
		return e.store.Replace(ctx, playlistID, next.Events())
	})
}

// Merge folds events from another replica into the playlist's log. Events
// without a playlist id are assigned to this playlist; events naming another
// playlist are rejected. The gate's per-edit invariants do not apply: merged
// events were accepted where they were authored.
func (e *Engine) Merge(ctx context.Context, userID, playlistID string, remote []eventlog.EditEvent) (eventlog.MergeResult, error) {
	if err := e.requireEditor(errors.OpMerge, userID, playlistID); err != nil {
		return eventlog.MergeResult{}, err
	}

	events := make([]eventlog.EditEvent, len(remote))
	for i, ev := range remote {
		ev = ev.Clone()
		if ev.PlaylistID == "" {
			ev.PlaylistID = playlistID
		}
		if ev.PlaylistID != playlistID {
			return eventlog.MergeResult{}, errors.NewValidationError(errors.OpMerge,
				fmt.Errorf("event %s belongs to playlist %q", ev.OpID, ev.PlaylistID))
		}
		if err := ev.Validate(); err != nil {
			return eventlog.MergeResult{}, errors.NewValidationError(errors.OpMerge, err)
		}
		events[i] = ev
	}

	p, err := e.lookup(ctx, playlistID)
	if err != nil {
		return eventlog.MergeResult{}, err
	}

	res, err := func() (eventlog.MergeResult, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		next := p.log.Clone()
		res := next.Merge(events)
		if err := e.persist(ctx, errors.OpMerge, playlistID, next); err != nil {
			return eventlog.MergeResult{}, err
		}
		p.log = next
		e.clock.Observe(next.MaxTimestamp())
		return res, nil
	}()
	if err != nil {
		return res, err
	}

	e.metrics.RecordMerge(res.Added, res.Duplicates, len(res.Dropped))
	e.logger.WithPlaylist(playlistID).InfoContext(ctx, "merged remote events",
		slog.String("user_id", userID),
		slog.Int("added", res.Added),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("dropped", len(res.Dropped)),
	)
	e.notify(ctx, playlistID, eventlog.EditEvent{UserID: userID, PlaylistID: playlistID}, KindMerged)
	return res, nil
}

// State returns a copy of the playlist's current state.
func (e *Engine) State(ctx context.Context, userID, playlistID string) (*replay.State, error) {
	var st *replay.State
	err := e.read(ctx, userID, playlistID, func(p *playlist) {
		st = e.currentState(p).Clone()
	})
	return st, err
}

// StateAt returns the state after the first n events of the log.
func (e *Engine) StateAt(ctx context.Context, userID, playlistID string, n int) (*replay.State, error) {
	var events []eventlog.EditEvent
	err := e.read(ctx, userID, playlistID, func(p *playlist) { events = p.log.Events() })
	if err != nil {
		return nil, err
	}
	return e.replay(func() *replay.State {
		return replay.ReplayPrefix(events, n, replay.WithAvailability(e.catalog))
	}, min(max(n, 0), len(events))), nil
}

// StateAsOf returns the state built from events stamped at or before ts.
func (e *Engine) StateAsOf(ctx context.Context, userID, playlistID string, ts int64) (*replay.State, error) {
	var events []eventlog.EditEvent
	err := e.read(ctx, userID, playlistID, func(p *playlist) { events = p.log.Events() })
	if err != nil {
		return nil, err
	}
	return e.replay(func() *replay.State {
		return replay.ReplayAsOf(events, ts, replay.WithAvailability(e.catalog))
	}, len(events)), nil
}

// Events returns the playlist's log.
func (e *Engine) Events(ctx context.Context, userID, playlistID string) ([]eventlog.EditEvent, error) {
	var events []eventlog.EditEvent
	err := e.read(ctx, userID, playlistID, func(p *playlist) { events = p.log.Events() })
	return events, err
}

// EventsSince returns the persisted events stored after since, with the
// cursor to pass next time.
func (e *Engine) EventsSince(ctx context.Context, userID, playlistID string, since cursor.IntegerCursor) ([]eventlog.EditEvent, cursor.IntegerCursor, error) {
	if err := e.requireViewer(userID, playlistID); err != nil {
		return nil, since, err
	}
	return e.store.Load(ctx, playlistID, since)
}

// Frontier returns the vector clock of the playlist's log.
func (e *Engine) Frontier(ctx context.Context, userID, playlistID string) (*version.VectorClock, error) {
	var vc *version.VectorClock
	err := e.read(ctx, userID, playlistID, func(p *playlist) { vc = p.log.Frontier() })
	return vc, err
}

// Popularity counts add events per item in the playlist's raw log.
func (e *Engine) Popularity(ctx context.Context, userID, playlistID string) (map[string]int, error) {
	var counts map[string]int
	err := e.read(ctx, userID, playlistID, func(p *playlist) { counts = p.log.Popularity() })
	return counts, err
}

// PurgeUser removes every event the user authored, in the store and in every
// loaded log, and drops the user's roles. It returns the number of stored
// events removed.
func (e *Engine) PurgeUser(ctx context.Context, userID string) (int, error) {
	n, err := e.store.DeleteUser(ctx, userID)
	if err != nil {
		e.logger.LogError(ctx, err, "failed to purge user events", slog.String("user_id", userID))
		return 0, err
	}

	e.mu.RLock()
	loaded := make([]*playlist, 0, len(e.playlists))
	for _, p := range e.playlists {
		loaded = append(loaded, p)
	}
	e.mu.RUnlock()

	for _, p := range loaded {
		p.mu.Lock()
		p.log.RemoveEventsForUser(userID)
		p.mu.Unlock()
	}
	roles := e.table.RemoveUser(userID)

	e.logger.InfoContext(ctx, "user purged",
		slog.String("user_id", userID),
		slog.Int("events", n),
		slog.Int("playlists", roles),
	)
	return n, nil
}

func (e *Engine) read(ctx context.Context, userID, playlistID string, fn func(*playlist)) error {
	if err := e.requireViewer(userID, playlistID); err != nil {
		return err
	}
	p, err := e.lookup(ctx, playlistID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
	return nil
}

// lookup returns the loaded playlist, loading it from the store first if needed.
func (e *Engine) lookup(ctx context.Context, playlistID string) (*playlist, error) {
	e.mu.RLock()
	p := e.playlists[playlistID]
	e.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	events, _, err := e.store.Load(ctx, playlistID, cursor.IntegerCursor{})
	if err != nil {
		return nil, err
	}
	log := eventlog.FromEvents(events, eventlog.WithResolver(e.resolver))
	e.clock.Observe(log.MaxTimestamp())

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing := e.playlists[playlistID]; existing != nil {
		return existing, nil
	}
	p = &playlist{log: log}
	e.playlists[playlistID] = p
	e.logger.Debug("playlist loaded", slog.String("playlist_id", playlistID), slog.Int("events", len(events)))
	return p, nil
}

// currentState returns the cached state, rebuilding it when the log or the
// catalog changed. p.mu must be held.
func (e *Engine) currentState(p *playlist) *replay.State {
	key := stateKey{gen: p.log.Generation(), catalog: catalog.VersionOf(e.catalog)}
	if p.state != nil && p.stateKey == key {
		return p.state
	}
	events := p.log.Events()
	p.state = e.replay(func() *replay.State {
		return replay.Replay(events, replay.WithAvailability(e.catalog))
	}, len(events))
	p.stateKey = key
	return p.state
}

func (e *Engine) replay(fn func() *replay.State, events int) *replay.State {
	start := time.Now()
	st := fn()
	e.metrics.RecordReplay(events, time.Since(start))
	return st
}

func (e *Engine) notify(ctx context.Context, playlistID string, ev eventlog.EditEvent, kind string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, playlistID, ev, kind); err != nil {
		e.logger.WithPlaylist(playlistID).WarnContext(ctx, "notification failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) requireExists(op errors.Operation, playlistID string) error {
	if !e.table.Exists(playlistID) {
		return errors.NewWithComponent(op, "engine", errors.KindNotFound, nil).With("playlist_id", playlistID)
	}
	return nil
}

func (e *Engine) requireEditor(op errors.Operation, userID, playlistID string) error {
	if err := e.requireExists(op, playlistID); err != nil {
		return err
	}
	if !e.table.CanEdit(userID, playlistID) {
		return errors.PermissionDenied(op, userID, playlistID)
	}
	return nil
}

func (e *Engine) requireViewer(userID, playlistID string) error {
	if err := e.requireExists(errors.OpView, playlistID); err != nil {
		return err
	}
	if !e.table.CanView(userID, playlistID) {
		return errors.PermissionDenied(errors.OpView, userID, playlistID)
	}
	return nil
}

func (e *Engine) requireOwner(op errors.Operation, userID, playlistID string) error {
	if err := e.requireExists(op, playlistID); err != nil {
		return err
	}
	if owner, ok := e.table.Owner(playlistID); !ok || owner != userID {
		return errors.PermissionDenied(op, userID, playlistID)
	}
	return nil
}
