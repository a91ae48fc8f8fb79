// Package httpapi serves the playlist engine over HTTP and provides a client
// for replicas that sync through it.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/c0deZ3R0/go-playlist-kit/access"
	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/engine"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
	"github.com/c0deZ3R0/go-playlist-kit/orderedlist"
	"github.com/c0deZ3R0/go-playlist-kit/replay"
)

// Handler routes playlist requests to an engine.
type Handler struct {
	engine  *engine.Engine
	logger  *logging.Logger
	options *ServerOptions
	router  chi.Router
}

// NewHandler builds the router. A nil logger discards.
func NewHandler(e *engine.Engine, logger *logging.Logger, opts ...ServerOption) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{
		engine:  e,
		logger:  logger.WithComponent(logging.Component("httpapi")),
		options: applyServerOptions(opts...),
	}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	if h.options.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.options.RequestTimeout))
	}

	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/playlists", h.handleCreatePlaylist)
		r.Get("/playlists/{id}", h.handleGetState)
		r.Delete("/playlists/{id}", h.handleDeletePlaylist)
		r.Get("/playlists/{id}/events", h.handleEvents)
		r.Get("/playlists/{id}/frontier", h.handleFrontier)
		r.Get("/playlists/{id}/popularity", h.handlePopularity)

		r.Post("/playlists/{id}/tracks", h.handleAddTrack)
		r.Delete("/playlists/{id}/tracks/{item}", h.handleRemoveTrack)
		r.Post("/playlists/{id}/tracks/{item}/move", h.handleMoveTrack)
		r.Patch("/playlists/{id}/tracks/{item}", h.handleUpdateTrack)

		r.Post("/playlists/{id}/undo", h.handleUndo)
		r.Post("/playlists/{id}/redo", h.handleRedo)
		r.Post("/playlists/{id}/sync", h.handleSync)

		r.Put("/playlists/{id}/members/{user}", h.handleSetRole)
		r.Put("/playlists/{id}/privacy", h.handleSetPrivacy)

		r.Delete("/users/{user}", h.handlePurgeUser)
	})
	return r
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorBody{Error: "missing " + UserHeader + " header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userOf(r *http.Request) string {
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// decode reads a JSON request body into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	return h.decodeBody(w, r, v, false)
}

// decodeOptional is decode for requests whose body may be empty, however it
// is framed. An empty body leaves v untouched.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	return h.decodeBody(w, r, v, true)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	data, err := readBody(w, r, h.options)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		if optional {
			return nil
		}
		return errors.NewValidationError(errors.OpDecode, io.EOF)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewValidationError(errors.OpDecode, err)
	}
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"replica": h.engine.ReplicaID(),
	})
}

func (h *Handler) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaylistRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	privacy, err := access.ParsePrivacy(req.Privacy)
	if err != nil {
		h.respondError(w, r, errors.NewValidationError(errors.OpCreatePlaylist, err))
		return
	}
	if err := h.engine.CreatePlaylist(r.Context(), req.ID, userOf(r), privacy); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, map[string]string{"id": req.ID, "owner": userOf(r), "privacy": string(privacy)})
}

func (h *Handler) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeletePlaylist(r.Context(), userOf(r), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetState serves the current state, or a historical one with
// ?at=<event count> or ?asOf=<timestamp>.
func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx, id, user := r.Context(), chi.URLParam(r, "id"), userOf(r)
	q := r.URL.Query()

	var (
		st  *replay.State
		err error
	)
	switch {
	case q.Has("at"):
		n, perr := strconv.Atoi(q.Get("at"))
		if perr != nil {
			h.respondError(w, r, errors.NewValidationError(errors.OpReplay, fmt.Errorf("invalid at: %w", perr)))
			return
		}
		st, err = h.engine.StateAt(ctx, user, id, n)
	case q.Has("asOf"):
		ts, perr := strconv.ParseInt(q.Get("asOf"), 10, 64)
		if perr != nil {
			h.respondError(w, r, errors.NewValidationError(errors.OpReplay, fmt.Errorf("invalid asOf: %w", perr)))
			return
		}
		st, err = h.engine.StateAsOf(ctx, user, id, ts)
	default:
		st, err = h.engine.State(ctx, user, id)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := StateResponse{PlaylistID: id, Tracks: make([]Track, 0, st.Len())}
	st.Each(func(_ orderedlist.Handle, item string, meta map[string]any) bool {
		resp.Tracks = append(resp.Tracks, Track{ItemID: item, Metadata: meta})
		return true
	})
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, err := cursor.ParseInteger(r.URL.Query().Get("since"))
	if err != nil {
		h.respondError(w, r, errors.NewValidationError(errors.OpLoad, err))
		return
	}
	events, next, err := h.engine.EventsSince(r.Context(), userOf(r), chi.URLParam(r, "id"), since)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	wc, err := cursor.MarshalWire(next)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if events == nil {
		events = []eventlog.EditEvent{}
	}
	h.respond(w, r, http.StatusOK, EventsResponse{Events: events, Cursor: wc})
}

func (h *Handler) handleFrontier(w http.ResponseWriter, r *http.Request) {
	vc, err := h.engine.Frontier(r.Context(), userOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	wc, err := cursor.MarshalWire(cursor.FrontierCursor{Clock: vc})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wc)
}

func (h *Handler) handlePopularity(w http.ResponseWriter, r *http.Request) {
	counts, err := h.engine.Popularity(r.Context(), userOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, counts)
}

func (h *Handler) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var req AddTrackRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ev, err := h.engine.AddTrack(r.Context(), userOf(r), chi.URLParam(r, "id"), req.ItemID, req.Position, req.Metadata)
	h.respondEvent(w, r, http.StatusCreated, ev, err)
}

func (h *Handler) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	ev, err := h.engine.RemoveTrack(r.Context(), userOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "item"))
	h.respondEvent(w, r, http.StatusOK, ev, err)
}

func (h *Handler) handleMoveTrack(w http.ResponseWriter, r *http.Request) {
	var req MoveTrackRequest
	if err := h.decodeOptional(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ev, err := h.engine.MoveTrack(r.Context(), userOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "item"), req.Position)
	h.respondEvent(w, r, http.StatusOK, ev, err)
}

func (h *Handler) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	var req UpdateTrackRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ev, err := h.engine.UpdateTrack(r.Context(), userOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "item"), req.Metadata)
	h.respondEvent(w, r, http.StatusOK, ev, err)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	ev, err := h.engine.Undo(r.Context(), userOf(r), chi.URLParam(r, "id"))
	h.respondEvent(w, r, http.StatusOK, ev, err)
}

func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	ev, err := h.engine.Redo(r.Context(), userOf(r), chi.URLParam(r, "id"))
	h.respondEvent(w, r, http.StatusOK, ev, err)
}

func (h *Handler) respondEvent(w http.ResponseWriter, r *http.Request, code int, ev eventlog.EditEvent, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, code, ev)
}

// handleSync merges a batch of remote events. The body is decoded by the
// codec registered for its Content-Type and may be gzip encoded.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := batchCodec(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	data, err := readBody(w, r, h.options)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	batch, err := c.Decode(data)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if batch.PlaylistID != "" && batch.PlaylistID != id {
		h.respondError(w, r, errors.NewValidationError(errors.OpMerge,
			fmt.Errorf("batch is for playlist %q", batch.PlaylistID)))
		return
	}

	res, err := h.engine.Merge(r.Context(), userOf(r), id, batch.Events)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	vc, err := h.engine.Frontier(r.Context(), userOf(r), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "sync batch merged",
		slog.String("playlist_id", id),
		slog.String("codec", c.Kind()),
		slog.Int("events", len(batch.Events)),
	)
	h.respond(w, r, http.StatusOK, SyncResponse{
		Added:      res.Added,
		Duplicates: res.Duplicates,
		Dropped:    res.Dropped,
		Frontier:   vc,
	})
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	var role access.Role
	if req.Role != "" {
		parsed, err := access.ParseRole(req.Role)
		if err != nil {
			h.respondError(w, r, errors.NewValidationError(errors.OpGrant, err))
			return
		}
		role = parsed
	}
	if err := h.engine.SetRole(r.Context(), userOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "user"), role); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPrivacy(w http.ResponseWriter, r *http.Request) {
	var req SetPrivacyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	privacy, err := access.ParsePrivacy(req.Privacy)
	if err != nil {
		h.respondError(w, r, errors.NewValidationError(errors.OpGrant, err))
		return
	}
	if err := h.engine.SetPrivacy(r.Context(), userOf(r), chi.URLParam(r, "id"), privacy); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePurgeUser erases a user's history. Users may only purge themselves.
func (h *Handler) handlePurgeUser(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "user")
	if target != userOf(r) {
		h.respondError(w, r, errors.PermissionDenied(errors.OpPurgeUser, userOf(r), ""))
		return
	}
	n, err := h.engine.PurgeUser(r.Context(), target)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]int{"removed": n})
}
