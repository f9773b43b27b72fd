package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/snapshot"
)

func sessionCtx() context.Context {
	return auth.WithSession(context.Background(), auth.Session{ID: "s1", UserID: "u1"})
}

func newListController(load Loader[[]string], opts ...func(*Options[[]string])) (*Controller[[]string], *notification.Manager) {
	notes := notification.NewManager(nil, zerolog.Nop())
	o := Options[[]string]{
		Screen:   "patients",
		Load:     load,
		Empty:    func() []string { return []string{} },
		Notifier: notes,
		Owner:    "u1",
		Logger:   zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewController(o), notes
}

func TestController_LoadSuccess(t *testing.T) {
	c, notes := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	if c.Phase() != PhaseIdle {
		t.Fatalf("expected idle before mount, got %s", c.Phase())
	}

	s, err := c.SetDeps(sessionCtx(), Deps{"role": "doctor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Items) != 2 || s.IsLoading || s.Error != "" || s.Phase != PhaseLoaded {
		t.Fatalf("unexpected state: %+v", s)
	}
	if notes.Pending("s1") != 0 {
		t.Error("expected no toast on success")
	}
}

func TestController_SameDepsDoNotRefetch(t *testing.T) {
	calls := 0
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		calls++
		return []string{deps.Get("patient_id")}, nil
	})
	ctx := sessionCtx()
	c.SetDeps(ctx, Deps{"patient_id": "7"})
	c.SetDeps(ctx, Deps{"patient_id": "7", "unused": ""})
	if calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}
	s, _ := c.SetDeps(ctx, Deps{"patient_id": "8"})
	if calls != 2 || s.Items[0] != "8" {
		t.Fatalf("expected reload for new deps, calls=%d items=%v", calls, s.Items)
	}
}

func TestController_LoadFailureUsesEmptyShapeAndNotifies(t *testing.T) {
	boom := errors.New("backend down")
	c, notes := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		return nil, boom
	})

	s, err := c.Load(sessionCtx())
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error returned, got %v", err)
	}
	if s.Phase != PhaseLoadFailed || s.Error != "Failed to load patients" || s.Items == nil || len(s.Items) != 0 {
		t.Fatalf("unexpected state: %+v", s)
	}
	got := notes.Drain("s1")
	if len(got) != 1 || got[0].Level != notification.LevelError {
		t.Fatalf("expected one error toast, got %+v", got)
	}
}

func TestController_SnapshotFallback(t *testing.T) {
	cache := snapshot.NewCache[[]string](snapshot.NewMemoryStore(10), "patients", time.Minute)
	fail := false
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return []string{"Ann", "Bob"}, nil
	}, func(o *Options[[]string]) { o.Snapshot = cache })

	ctx := sessionCtx()
	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}

	fail = true
	s, err := c.Load(ctx)
	if err == nil {
		t.Fatal("expected error from failed load")
	}
	if !s.Stale || s.StoredAt == nil || len(s.Items) != 2 {
		t.Fatalf("expected stale snapshot data, got %+v", s)
	}
	if s.Phase != PhaseLoadFailed || s.Error == "" {
		t.Errorf("expected failure still reported, got %+v", s)
	}

	fail = false
	s, _ = c.Load(ctx)
	if s.Stale || s.StoredAt != nil {
		t.Error("expected fresh data to clear stale flag")
	}
}

func TestController_StaleResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		if deps.Get("patient_id") == "1" {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []string{"stale"}, nil
		}
		return []string{"fresh"}, nil
	})
	ctx := sessionCtx()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.SetDeps(ctx, Deps{"patient_id": "1"})
	}()
	<-started

	s, err := c.SetDeps(ctx, Deps{"patient_id": "2"})
	if err != nil || s.Items[0] != "fresh" {
		t.Fatalf("unexpected second load: %v %+v", err, s)
	}
	close(release)
	wg.Wait()

	if !errors.Is(firstErr, ErrSuperseded) {
		t.Fatalf("expected first load superseded, got %v", firstErr)
	}
	if got := c.State().Items; len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("stale response overwrote state: %v", got)
	}
}

func TestController_UnmountCancelsInFlightLoad(t *testing.T) {
	started := make(chan struct{})
	c, notes := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(sessionCtx())
		done <- err
	}()
	<-started
	c.Unmount()

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}
	if s := c.State(); s.Phase != PhaseIdle || s.IsLoading || s.Error != "" {
		t.Fatalf("expected clean idle state after unmount, got %+v", s)
	}
	if notes.Pending("s1") != 0 {
		t.Error("expected no toast for a cancelled load")
	}
}

func TestController_PartialSettledLoadKeepsData(t *testing.T) {
	type pair struct{ A, B []string }
	notes := notification.NewManager(nil, zerolog.Nop())
	c := NewController(Options[pair]{
		Screen: "ehr",
		Load: func(ctx context.Context, deps Deps) (pair, error) {
			var p pair
			err := Batch(ctx, SettleAll,
				Fetch("a", &p.A, func(context.Context) ([]string, error) { return []string{"x"}, nil }),
				Fetch("b", &p.B, func(context.Context) ([]string, error) { return nil, errors.New("boom") }),
			)
			return p, err
		},
		Notifier: notes,
		Logger:   zerolog.Nop(),
	})

	s, err := c.Load(sessionCtx())
	if err == nil {
		t.Fatal("expected partial error")
	}
	if s.Phase != PhaseLoaded || len(s.Items.A) != 1 || s.Items.B != nil {
		t.Fatalf("unexpected state: %+v", s)
	}
	if s.Errors["b"] == "" || s.Errors["a"] != "" {
		t.Errorf("expected per-slot error for b only, got %v", s.Errors)
	}
	if notes.Pending("s1") != 1 {
		t.Error("expected a toast for the failed slot")
	}
}

func TestController_TransitionsAndSettle(t *testing.T) {
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		return []string{"a"}, nil
	})
	if err := c.Transition(PhaseModalOpen); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected modal to require a loaded screen, got %v", err)
	}
	c.Load(sessionCtx())

	for _, p := range []Phase{PhaseModalOpen, PhaseValidating, PhaseSubmitting} {
		if err := c.Transition(p); err != nil {
			t.Fatalf("transition to %s: %v", p, err)
		}
	}
	c.SetSubmitting(false)
	if err := c.Refetch(sessionCtx()); err != nil {
		t.Fatalf("refetch after submit: %v", err)
	}
	if c.Phase() != PhaseLoaded {
		t.Fatalf("expected loaded, got %s", c.Phase())
	}

	c.Transition(PhaseModalOpen)
	c.Transition(PhaseValidating)
	if _, err := c.Load(sessionCtx()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected load during validation to be refused, got %v", err)
	}
	c.Transition(PhaseModalOpen)
	if err := c.Settle(); err != nil || c.Phase() != PhaseLoaded {
		t.Fatalf("expected settle back to loaded, got %v %s", err, c.Phase())
	}
}

func TestController_DepsChangeRefusedWhileBusyIsRetried(t *testing.T) {
	calls := 0
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		calls++
		return []string{deps.Get("patient_id")}, nil
	})
	ctx := sessionCtx()
	c.SetDeps(ctx, Deps{"patient_id": "7"})
	c.Transition(PhaseModalOpen)
	c.Transition(PhaseConfirmDiscard)

	if _, err := c.SetDeps(ctx, Deps{"patient_id": "8"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy while confirming discard, got %v", err)
	}
	if got := c.Deps().Get("patient_id"); got != "7" {
		t.Fatalf("expected deps to stay with the loaded data, got %q", got)
	}

	c.Settle()
	s, err := c.SetDeps(ctx, Deps{"patient_id": "8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 || len(s.Items) != 1 || s.Items[0] != "8" {
		t.Fatalf("expected reload for patient 8, calls=%d items=%v", calls, s.Items)
	}
}

func TestController_SubmittingRefusesLoadAndReopen(t *testing.T) {
	c, _ := newListController(func(ctx context.Context, deps Deps) ([]string, error) {
		return []string{"a"}, nil
	})
	ctx := sessionCtx()
	c.Load(ctx)
	for _, p := range []Phase{PhaseModalOpen, PhaseValidating, PhaseSubmitting} {
		if err := c.Transition(p); err != nil {
			t.Fatalf("transition to %s: %v", p, err)
		}
	}
	if !c.State().IsSubmitting {
		t.Fatal("expected submit flag raised on entering submitting")
	}

	if _, err := c.Load(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected load refused while submitting, got %v", err)
	}
	if err := c.Transition(PhaseModalOpen); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected form reopen refused while submitting, got %v", err)
	}
	if s := c.State(); s.Phase != PhaseSubmitting || !s.IsSubmitting {
		t.Fatalf("expected submit still in flight, got %+v", s)
	}

	c.SetSubmitting(false)
	if err := c.Refetch(ctx); err != nil {
		t.Fatalf("refetch after submit: %v", err)
	}
	if s := c.State(); s.Phase != PhaseLoaded || s.IsSubmitting {
		t.Fatalf("expected loaded with flag cleared, got %+v", s)
	}
}
