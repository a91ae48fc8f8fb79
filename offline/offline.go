// Package offline reconciles edits made on a disconnected replica with the
// canonical log.
package offline

import (
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/replay"
	"github.com/c0deZ3R0/go-playlist-kit/version"
)

// Result is the outcome of a sync.
type Result struct {
	// State is the replayed merged log.
	State *replay.State
	// Events is the merged canonical log.
	Events []eventlog.EditEvent
	// Local and Remote report each merge step.
	Local  eventlog.MergeResult
	Remote eventlog.MergeResult
	// Frontier joins the frontiers of both inputs: per author, the highest
	// timestamp either side had observed, including events the merge dropped.
	Frontier *version.VectorClock
}

// Sequence returns the ordered item ids of the merged state.
func (r Result) Sequence() []string { return r.State.ToSequence() }

type options struct {
	logOpts    []eventlog.Option
	replayOpts []replay.Option
}

// Option configures a sync.
type Option func(*options)

// WithResolver sets the conflict policy for both merges.
func WithResolver(r eventlog.ConflictResolver) Option {
	return func(o *options) { o.logOpts = append(o.logOpts, eventlog.WithResolver(r)) }
}

// WithReplay passes options to the final replay, such as an availability filter.
func WithReplay(opts ...replay.Option) Option {
	return func(o *options) { o.replayOpts = append(o.replayOpts, opts...) }
}

// SyncOfflineEdits merges local then remote into a fresh log and replays it.
// Merge is commutative and idempotent, so swapping local and remote yields
// the same state.
func SyncOfflineEdits(local, remote []eventlog.EditEvent, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := eventlog.New(o.logOpts...)
	res := Result{
		Local:  log.Merge(local),
		Remote: log.Merge(remote),
	}
	res.Events = log.Events()
	res.State = replay.Replay(res.Events, o.replayOpts...)

	res.Frontier = eventlog.FromEvents(local).Frontier()
	if err := res.Frontier.Merge(eventlog.FromEvents(remote).Frontier()); err != nil {
		res.Frontier = log.Frontier()
	}
	return res
}

// Pending returns the local events whose op ids remote does not hold, in local
// order. These are what a reconnecting replica must upload. Op ids are the only
// reliable test: timestamps are monotonic per replica, so one user's edits on
// two devices do not compare.
func Pending(local, remote []eventlog.EditEvent) []eventlog.EditEvent {
	seen := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		seen[e.OpID] = struct{}{}
	}
	var out []eventlog.EditEvent
	for _, e := range local {
		if _, ok := seen[e.OpID]; !ok {
			out = append(out, e.Clone())
		}
	}
	return out
}
