// Package view owns the state of one mounted screen: its data, loading and
// submitting flags, the last error and the phase of its load/edit cycle.
// Every load is tagged with a generation token so that a response arriving
// after the screen's dependencies changed, or after it was unmounted, is
// dropped instead of overwriting newer state.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/metrics"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/snapshot"
)

// ErrSuperseded is returned by Load when a newer load or an unmount made its
// result irrelevant. The returned state is the controller's current state.
var ErrSuperseded = errors.New("load superseded")

// State is the JSON shape a screen renders from.
type State[D any] struct {
	Items        D                 `json:"items"`
	IsLoading    bool              `json:"isLoading"`
	IsSubmitting bool              `json:"isSubmitting"`
	Error        string            `json:"error,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	Phase        Phase             `json:"phase"`
	Stale        bool              `json:"stale,omitempty"`
	StoredAt     *time.Time        `json:"storedAt,omitempty"`
}

// Loader fetches a screen's data for deps.
type Loader[D any] func(ctx context.Context, deps Deps) (D, error)

// Options configures a Controller.
type Options[D any] struct {
	// Screen names the screen in logs, metrics and toasts.
	Screen string
	Load   Loader[D]
	// Empty returns the shape shown when a load fails and no snapshot is
	// available.
	Empty func() D
	// FailureMessage is the toast raised when a load fails.
	FailureMessage string
	Notifier       notification.Notifier
	// Snapshot, when set, is saved after every successful load and served
	// (flagged stale) when a load fails.
	Snapshot *snapshot.Cache[D]
	// Owner scopes snapshot keys, normally the user id.
	Owner  string
	Logger zerolog.Logger
}

// Controller is the owner of one mounted screen's State.
type Controller[D any] struct {
	opts Options[D]

	mu      sync.Mutex
	state   State[D]
	deps    Deps
	loaded  bool
	settled Phase
	gen     uint64
	cancel  context.CancelFunc
}

// NewController creates an idle Controller.
func NewController[D any](opts Options[D]) *Controller[D] {
	if opts.FailureMessage == "" {
		opts.FailureMessage = "Failed to load " + opts.Screen
	}
	c := &Controller[D]{opts: opts, settled: PhaseLoaded}
	c.state = State[D]{Items: c.empty(), Phase: PhaseIdle}
	return c
}

func (c *Controller[D]) empty() D {
	if c.opts.Empty != nil {
		return c.opts.Empty()
	}
	var zero D
	return zero
}

// Screen returns the screen name.
func (c *Controller[D]) Screen() string { return c.opts.Screen }

// State returns a copy of the current state.
func (c *Controller[D]) State() State[D] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyState()
}

func (c *Controller[D]) copyState() State[D] {
	s := c.state
	if c.state.Errors != nil {
		s.Errors = make(map[string]string, len(c.state.Errors))
		for k, v := range c.state.Errors {
			s.Errors[k] = v
		}
	}
	return s
}

// Deps returns the dependencies of the current data.
func (c *Controller[D]) Deps() Deps {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps.clone()
}

// Phase returns the current phase.
func (c *Controller[D]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// SetDeps loads the screen when it has never loaded or when deps differ from
// the dependencies of its current data. Otherwise it returns the current state
// without a backend call.
func (c *Controller[D]) SetDeps(ctx context.Context, deps Deps) (State[D], error) {
	c.mu.Lock()
	if c.loaded && c.deps.Equal(deps) {
		s := c.copyState()
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()
	next := deps.clone()
	return c.load(ctx, &next, false)
}

// Load refetches the screen for its current deps. Any load still in flight
// is cancelled and its result discarded. The returned error is the load
// failure, if any; State already carries its user-facing form.
func (c *Controller[D]) Load(ctx context.Context) (State[D], error) {
	return c.load(ctx, nil, false)
}

// load starts a load, switching to next deps first when next is set. The
// deps only change once the screen is allowed to enter the loading phase.
// afterSubmit admits the single refetch that ends a submit.
func (c *Controller[D]) load(ctx context.Context, next *Deps, afterSubmit bool) (State[D], error) {
	c.mu.Lock()
	if !(afterSubmit && c.state.Phase == PhaseSubmitting) {
		if err := checkTransition(c.state.Phase, PhaseLoading); err != nil {
			s := c.copyState()
			c.mu.Unlock()
			return s, err
		}
	}
	if next != nil {
		c.deps = *next
	}
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Phase = PhaseLoading
	c.state.IsLoading = true
	deps := c.deps.clone()
	c.mu.Unlock()

	data, err := c.opts.Load(loadCtx, deps)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		cancel()
		c.opts.Logger.Debug().Str("screen", c.opts.Screen).Uint64("generation", gen).Msg("discarding superseded load")
		return c.copyState(), ErrSuperseded
	}
	cancel()
	c.cancel = nil
	c.loaded = true
	c.state.IsLoading = false
	c.state.Errors = nil
	c.state.Stale = false
	c.state.StoredAt = nil

	var partial *PartialLoadError
	switch {
	case err == nil:
		c.state.Items = data
		c.state.Error = ""
		c.enter(PhaseLoaded)
		c.save(ctx, deps, data)
		metrics.ObserveScreenLoad(c.opts.Screen, "ok")
	case errors.As(err, &partial) && partial.Settled() && len(partial.Errors) < partial.Total:
		c.state.Items = data
		c.state.Error = c.opts.FailureMessage
		c.state.Errors = partial.Messages()
		c.enter(PhaseLoaded)
		c.notify(ctx)
		metrics.ObserveScreenLoad(c.opts.Screen, "partial")
	default:
		c.fallback(ctx, deps)
		c.state.Error = c.opts.FailureMessage
		if errors.As(err, &partial) {
			c.state.Errors = partial.Messages()
		}
		c.enter(PhaseLoadFailed)
		c.notify(ctx)
		metrics.ObserveScreenLoad(c.opts.Screen, "failed")
	}
	if err != nil {
		c.opts.Logger.Warn().Err(err).Str("screen", c.opts.Screen).Str("deps", deps.Key()).Msg("screen load failed")
	}
	return c.copyState(), err
}

// Refetch reloads the screen after a mutation, reporting only the error. It is
// the only load a submitting screen accepts.
func (c *Controller[D]) Refetch(ctx context.Context) error {
	_, err := c.load(ctx, nil, true)
	return err
}

// Unmount cancels any load in flight and drops the screen's data.
func (c *Controller[D]) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loaded = false
	c.deps = nil
	c.settled = PhaseLoaded
	c.state = State[D]{Items: c.empty(), Phase: PhaseIdle}
}

// Transition moves the screen to phase p, or fails with ErrBusy. Entering
// PhaseSubmitting raises the submit flag, and the form cannot reopen until
// SetSubmitting(false) lowers it.
func (c *Controller[D]) Transition(p Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsSubmitting && (p == PhaseModalOpen || p == PhaseValidating) {
		return errSubmitInFlight
	}
	if err := checkTransition(c.state.Phase, p); err != nil {
		return err
	}
	c.enter(p)
	if p == PhaseSubmitting {
		c.state.IsSubmitting = true
	}
	return nil
}

// Settle returns the screen to the outcome of its last load, closing any
// modal.
func (c *Controller[D]) Settle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := checkTransition(c.state.Phase, c.settled); err != nil {
		return err
	}
	c.enter(c.settled)
	return nil
}

// SetSubmitting sets the flag that gates the submit control.
func (c *Controller[D]) SetSubmitting(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsSubmitting = v
}

// enter must be called with mu held.
func (c *Controller[D]) enter(p Phase) {
	c.state.Phase = p
	if p == PhaseLoaded || p == PhaseLoadFailed {
		c.settled = p
	}
}

func (c *Controller[D]) snapshotKey(deps Deps) string {
	return c.opts.Owner + "|" + deps.Key()
}

// save must be called with mu held.
func (c *Controller[D]) save(ctx context.Context, deps Deps, data D) {
	if c.opts.Snapshot == nil {
		return
	}
	if err := c.opts.Snapshot.Save(context.WithoutCancel(ctx), c.snapshotKey(deps), data); err != nil {
		c.opts.Logger.Warn().Err(err).Str("screen", c.opts.Screen).Msg("snapshot save failed")
	}
}

// fallback must be called with mu held.
func (c *Controller[D]) fallback(ctx context.Context, deps Deps) {
	if c.opts.Snapshot != nil {
		data, storedAt, ok := c.opts.Snapshot.Load(context.WithoutCancel(ctx), c.snapshotKey(deps))
		if ok {
			c.state.Items = data
			c.state.Stale = true
			c.state.StoredAt = &storedAt
			metrics.ObserveSnapshotFallback(c.opts.Screen)
			return
		}
	}
	c.state.Items = c.empty()
}

// notify must be called with mu held.
func (c *Controller[D]) notify(ctx context.Context) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(ctx, notification.LevelError, c.opts.Screen, c.opts.FailureMessage)
	}
}
