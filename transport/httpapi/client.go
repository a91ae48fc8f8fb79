package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c0deZ3R0/go-playlist-kit/codec"
	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"
	"github.com/c0deZ3R0/go-playlist-kit/offline"
	"github.com/c0deZ3R0/go-playlist-kit/version"
)

// Limits defines size and compression limits for the client.
type Limits struct {
	MaxBodyBytes int64 // Maximum response body size in bytes
	EnableGzip   bool  // Whether to gzip large request bodies
	GzipMinBytes int   // Minimum bytes before applying gzip compression
}

// Client talks to a Handler on behalf of one user.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	limits  Limits
	codec   codec.Codec
	logger  *logging.Logger
}

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) { c.http = cl }
}

// WithLimits sets the size and compression limits
func WithLimits(l Limits) ClientOption {
	return func(c *Client) { c.limits = l }
}

// WithCodec sets the batch encoding used by Sync. Defaults to JSON.
func WithCodec(cd codec.Codec) ClientOption {
	return func(c *Client) { c.codec = cd }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for the server at baseURL acting as userID.
func NewClient(baseURL, userID string, opts ...ClientOption) *Client {
	jsonCodec, _ := codec.Get(codec.KindJSON)
	c := &Client{
		baseURL: baseURL,
		userID:  userID,
		http:    &http.Client{Timeout: 30 * time.Second},
		limits: Limits{
			MaxBodyBytes: 8 << 20,
			EnableGzip:   true,
			GzipMinBytes: 1024,
		},
		codec:  jsonCodec,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(logging.Component("httpapi.client"))
	return c
}

// Sync uploads events to the playlist and returns the merge outcome.
func (c *Client) Sync(ctx context.Context, playlistID string, events []eventlog.EditEvent) (SyncResponse, error) {
	payload, err := c.codec.Encode(codec.Batch{PlaylistID: playlistID, Events: events})
	if err != nil {
		return SyncResponse{}, errors.NewWithComponent(errors.OpMerge, "httpapi.client", errors.KindValidationFailure, err)
	}

	var body io.Reader = bytes.NewReader(payload)
	encoding := ""
	if c.limits.EnableGzip && len(payload) > c.limits.GzipMinBytes {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return SyncResponse{}, errors.NewWithComponent(errors.OpMerge, "httpapi.client", errors.KindValidationFailure, err)
		}
		if err := gw.Close(); err != nil {
			return SyncResponse{}, errors.NewWithComponent(errors.OpMerge, "httpapi.client", errors.KindValidationFailure, err)
		}
		c.logger.DebugContext(ctx, "compressed sync request",
			slog.Int("original_size", len(payload)),
			slog.Int("compressed_size", buf.Len()),
		)
		body, encoding = &buf, "gzip"
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.playlistURL(playlistID, "sync"), body)
	if err != nil {
		return SyncResponse{}, err
	}
	req.Header.Set("Content-Type", c.codec.ContentTypes()[0])
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	var resp SyncResponse
	if err := c.do(req, errors.OpMerge, &resp); err != nil {
		return SyncResponse{}, err
	}
	c.logger.DebugContext(ctx, "sync completed",
		slog.String("playlist_id", playlistID),
		slog.Int("sent", len(events)),
		slog.Int("added", resp.Added),
	)
	return resp, nil
}

// Events returns the events stored after since and the cursor to resume from.
func (c *Client) Events(ctx context.Context, playlistID string, since cursor.IntegerCursor) ([]eventlog.EditEvent, cursor.IntegerCursor, error) {
	u := c.playlistURL(playlistID, "events")
	if !since.IsZero() {
		u += "?since=" + since.String()
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, since, err
	}

	var resp EventsResponse
	if err := c.do(req, errors.OpLoad, &resp); err != nil {
		return nil, since, err
	}
	if resp.Cursor == nil {
		return resp.Events, since, nil
	}
	cur, err := cursor.UnmarshalWire(resp.Cursor)
	if err != nil {
		return nil, since, errors.NewValidationError(errors.OpLoad, err)
	}
	next, ok := cur.(cursor.IntegerCursor)
	if !ok {
		return nil, since, errors.NewValidationError(errors.OpLoad, fmt.Errorf("unexpected cursor kind %q", cur.Kind()))
	}
	return resp.Events, next, nil
}

// Frontier returns the server's vector clock for the playlist.
func (c *Client) Frontier(ctx context.Context, playlistID string) (*version.VectorClock, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.playlistURL(playlistID, "frontier"), nil)
	if err != nil {
		return nil, err
	}
	var wc cursor.WireCursor
	if err := c.do(req, errors.OpLoad, &wc); err != nil {
		return nil, err
	}
	cur, err := cursor.UnmarshalWire(&wc)
	if err != nil {
		return nil, errors.NewValidationError(errors.OpLoad, err)
	}
	fc, ok := cur.(cursor.FrontierCursor)
	if !ok {
		return nil, errors.NewValidationError(errors.OpLoad, fmt.Errorf("unexpected cursor kind %q", cur.Kind()))
	}
	return fc.Clock, nil
}

// PushPending uploads the local events whose op ids the server does not hold.
// It returns how many events were sent. Events the server dropped as conflict
// losers are not stored there, so they are sent again and dropped again.
func (c *Client) PushPending(ctx context.Context, playlistID string, local []eventlog.EditEvent) (int, SyncResponse, error) {
	remote, _, err := c.Events(ctx, playlistID, cursor.IntegerCursor{})
	if err != nil {
		return 0, SyncResponse{}, err
	}
	return c.push(ctx, playlistID, local, remote)
}

// Reconcile brings a replica that edited offline back in line. It merges local
// with the server's log to compute the state both sides converge to, then
// uploads the pending local events. opts must match the server's resolver for
// the returned state to agree with it.
func (c *Client) Reconcile(ctx context.Context, playlistID string, local []eventlog.EditEvent, opts ...offline.Option) (offline.Result, int, error) {
	remote, _, err := c.Events(ctx, playlistID, cursor.IntegerCursor{})
	if err != nil {
		return offline.Result{}, 0, err
	}
	res := offline.SyncOfflineEdits(local, remote, opts...)
	sent, _, err := c.push(ctx, playlistID, local, remote)
	if err != nil {
		return offline.Result{}, 0, err
	}
	c.logger.DebugContext(ctx, "reconciled offline edits",
		slog.String("playlist_id", playlistID),
		slog.Int("sent", sent),
		slog.Int("dropped", len(res.Local.Dropped)+len(res.Remote.Dropped)),
	)
	return res, sent, nil
}

func (c *Client) push(ctx context.Context, playlistID string, local, remote []eventlog.EditEvent) (int, SyncResponse, error) {
	pending := offline.Pending(local, remote)
	if len(pending) == 0 {
		return 0, SyncResponse{}, nil
	}
	resp, err := c.Sync(ctx, playlistID, pending)
	return len(pending), resp, err
}

func (c *Client) playlistURL(playlistID, suffix string) string {
	return c.baseURL + "/playlists/" + url.PathEscape(playlistID) + "/" + suffix
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.NewValidationError(errors.OpLoad, err)
	}
	req.Header.Set(UserHeader, c.userID)
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Error responses become
// PlaylistErrors carrying the server's kind.
func (c *Client) do(req *http.Request, op errors.Operation, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", slog.String("url", req.URL.String()), slog.String("error", err.Error()))
		return errors.NewStorageError(op, "httpapi.client", fmt.Errorf("network error: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.limits.MaxBodyBytes+1))
	if err != nil {
		return errors.NewStorageError(op, "httpapi.client", err)
	}
	if int64(len(data)) > c.limits.MaxBodyBytes {
		return errors.NewWithComponent(op, "httpapi.client", errors.KindValidationFailure,
			fmt.Errorf("response exceeds %d bytes", c.limits.MaxBodyBytes))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		kind := errors.Kind(eb.Kind)
		if kind == "" {
			kind = errors.KindStorageFailure
		}
		pe := errors.NewWithComponent(op, "httpapi.client", kind,
			fmt.Errorf("server error (status %d): %s", resp.StatusCode, eb.Error))
		pe.Retryable = eb.Retryable || resp.StatusCode >= http.StatusInternalServerError
		return pe.With("status", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewValidationError(errors.OpDecode, err)
	}
	return nil
}
