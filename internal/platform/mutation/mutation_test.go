package mutation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

type diagnosticForm struct {
	Patient  resource.ID `json:"patient"`
	TestType string      `json:"test_type"`
	Date     string      `json:"date"`
	Status   string      `json:"status"`
}

type harness struct {
	ctl      *view.Controller[[]string]
	notes    *notification.Manager
	loads    int
	patients []resource.ID
	coord    *Coordinator[diagnosticForm]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{patients: []resource.ID{"3", "7"}}
	h.notes = notification.NewManager(nil, zerolog.Nop())
	h.ctl = view.NewController(view.Options[[]string]{
		Screen: "diagnostics",
		Load: func(ctx context.Context, deps view.Deps) ([]string, error) {
			h.loads++
			return []string{"d1"}, nil
		},
		Notifier: h.notes,
		Logger:   zerolog.Nop(),
	})
	if _, err := h.ctl.Load(ctx()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	h.loads = 0
	h.coord = NewCoordinator(h.ctl, h.notes, DefaultMessages("diagnostic"), zerolog.Nop(),
		Required("test_type", "Test type is required", func(f diagnosticForm) string { return f.TestType }),
		Known("patient", "Please select a valid patient", func(f diagnosticForm) resource.ID { return f.Patient }, func() []resource.ID { return h.patients }),
		Date("date", func(f diagnosticForm) string { return f.Date }),
	)
	return h
}

func ctx() context.Context {
	return auth.WithSession(context.Background(), auth.Session{ID: "s1", UserID: "u1"})
}

func TestCoordinator_ValidationFailureMakesNoCall(t *testing.T) {
	h := newHarness(t)
	draft := NewDraft(diagnosticForm{})
	draft.Set(diagnosticForm{Patient: "0", TestType: "Blood Test", Date: "2024-01-01", Status: "pending"})

	calls := 0
	err := h.coord.Create(ctx(), draft, func(context.Context, diagnosticForm) error {
		calls++
		return nil
	})

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "patient" {
		t.Fatalf("expected patient validation error, got %v", err)
	}
	if calls != 0 || h.loads != 0 {
		t.Fatalf("expected no network activity, submits=%d loads=%d", calls, h.loads)
	}
	if h.ctl.Phase() != view.PhaseModalOpen {
		t.Errorf("expected modal to stay open, got %s", h.ctl.Phase())
	}
	if !draft.Dirty() {
		t.Error("expected draft kept intact")
	}
	toasts := h.notes.Drain("s1")
	if len(toasts) != 1 || toasts[0].Message != "Please select a valid patient" {
		t.Errorf("unexpected toasts %+v", toasts)
	}
}

func TestCoordinator_CreateSubmitsThenRefetchesOnce(t *testing.T) {
	h := newHarness(t)
	draft := NewDraft(diagnosticForm{})
	draft.Set(diagnosticForm{Patient: "7", TestType: "X-Ray", Date: "2024-01-01", Status: "pending"})

	var sent []diagnosticForm
	err := h.coord.Create(ctx(), draft, func(_ context.Context, f diagnosticForm) error {
		sent = append(sent, f)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) != 1 || sent[0].TestType != "X-Ray" {
		t.Fatalf("expected one create, got %+v", sent)
	}
	if h.loads != 1 {
		t.Fatalf("expected exactly one refetch, got %d", h.loads)
	}
	if draft.Dirty() {
		t.Error("expected draft reset after success")
	}
	s := h.ctl.State()
	if s.Phase != view.PhaseLoaded || s.IsSubmitting {
		t.Errorf("unexpected state after submit: %+v", s)
	}
	toasts := h.notes.Drain("s1")
	if len(toasts) != 1 || toasts[0].Message != "Diagnostic created successfully" {
		t.Errorf("unexpected toasts %+v", toasts)
	}
}

func TestCoordinator_ServerErrorKeepsDraft(t *testing.T) {
	h := newHarness(t)
	draft := NewDraft(diagnosticForm{})
	draft.Set(diagnosticForm{Patient: "7", TestType: "X-Ray"})

	backendErr := &apiclient.Error{Method: http.MethodPost, Path: "diagnostics/create/", Status: 400,
		Body: []byte(`{"detail":"Duplicate diagnostic for this date"}`)}
	err := h.coord.Create(ctx(), draft, func(context.Context, diagnosticForm) error { return backendErr })

	var serr *SubmitError
	if !errors.As(err, &serr) || serr.Message != "Duplicate diagnostic for this date" {
		t.Fatalf("expected submit error with server message, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Error("expected backend error preserved")
	}
	if h.loads != 0 {
		t.Errorf("expected no refetch on failure, got %d", h.loads)
	}
	if draft.Current().TestType != "X-Ray" || h.ctl.Phase() != view.PhaseModalOpen {
		t.Errorf("expected open modal with draft intact, phase=%s", h.ctl.Phase())
	}
	if h.ctl.State().IsSubmitting {
		t.Error("expected submit flag cleared")
	}
}

func TestCoordinator_UpdateRejectsPlaceholderID(t *testing.T) {
	h := newHarness(t)
	draft := NewDraft(diagnosticForm{Patient: "7", TestType: "X-Ray"})
	draft.Set(diagnosticForm{Patient: "7", TestType: "MRI"})

	calls := 0
	err := h.coord.Update(ctx(), resource.NewTempID(), draft, func(context.Context, resource.ID, diagnosticForm) error {
		calls++
		return nil
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || calls != 0 {
		t.Fatalf("expected validation error without submit, got %v calls=%d", err, calls)
	}
}

func TestCoordinator_Delete(t *testing.T) {
	h := newHarness(t)
	var deleted resource.ID
	err := h.coord.Delete(ctx(), "12", func(_ context.Context, id resource.ID) error {
		deleted = id
		return nil
	})
	if err != nil || deleted != "12" || h.loads != 1 {
		t.Fatalf("unexpected delete outcome err=%v id=%s loads=%d", err, deleted, h.loads)
	}

	err = h.coord.Delete(ctx(), "13", func(context.Context, resource.ID) error {
		return &apiclient.Error{Status: 500}
	})
	var serr *SubmitError
	if !errors.As(err, &serr) || serr.Message != "Failed to delete diagnostic" {
		t.Fatalf("expected generic delete failure, got %v", err)
	}
	if h.ctl.Phase() != view.PhaseLoaded {
		t.Errorf("expected screen settled after failed delete, got %s", h.ctl.Phase())
	}
}

func TestCoordinator_ConcurrentSubmitIsBusy(t *testing.T) {
	h := newHarness(t)
	h.ctl.Transition(view.PhaseModalOpen)
	h.ctl.Transition(view.PhaseValidating)
	h.ctl.Transition(view.PhaseSubmitting)

	err := h.coord.Delete(ctx(), "1", func(context.Context, resource.ID) error { return nil })
	if !errors.Is(err, view.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestCoordinator_RefreshDuringSubmitCannotStartSecondSubmit(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	first := NewDraft(diagnosticForm{})
	first.Set(diagnosticForm{Patient: "7", TestType: "X-Ray"})

	done := make(chan error, 1)
	go func() {
		done <- h.coord.Create(ctx(), first, func(context.Context, diagnosticForm) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if _, err := h.ctl.Load(ctx()); !errors.Is(err, view.ErrBusy) {
		t.Fatalf("expected refresh refused while submitting, got %v", err)
	}
	second := NewDraft(diagnosticForm{})
	second.Set(diagnosticForm{Patient: "3", TestType: "MRI"})
	calls := 0
	err := h.coord.Create(ctx(), second, func(context.Context, diagnosticForm) error {
		calls++
		return nil
	})
	if !errors.Is(err, view.ErrBusy) || calls != 0 {
		t.Fatalf("expected second submit refused, err=%v calls=%d", err, calls)
	}
	if s := h.ctl.State(); !s.IsSubmitting || s.Phase != view.PhaseSubmitting {
		t.Fatalf("expected first submit still in flight, got %+v", s)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if s := h.ctl.State(); s.IsSubmitting || s.Phase != view.PhaseLoaded || h.loads != 1 {
		t.Errorf("expected one refetch and a cleared flag, state=%+v loads=%d", s, h.loads)
	}
}

func TestCoordinator_RequestClose(t *testing.T) {
	h := newHarness(t)

	pristine := NewDraft(diagnosticForm{Status: "pending"})
	confirm, err := h.coord.RequestClose(pristine)
	if err != nil || confirm {
		t.Fatalf("expected silent close for pristine draft, confirm=%v err=%v", confirm, err)
	}

	dirty := NewDraft(diagnosticForm{Status: "pending"})
	dirty.Set(diagnosticForm{Status: "pending", TestType: "X"})
	confirm, err = h.coord.RequestClose(dirty)
	if err != nil || !confirm {
		t.Fatalf("expected confirmation for dirty draft, confirm=%v err=%v", confirm, err)
	}
	if h.ctl.Phase() != view.PhaseConfirmDiscard {
		t.Fatalf("expected confirm-discard phase, got %s", h.ctl.Phase())
	}

	if err := h.coord.KeepEditing(); err != nil || h.ctl.Phase() != view.PhaseModalOpen {
		t.Fatalf("expected back to modal, got %v %s", err, h.ctl.Phase())
	}
	h.coord.RequestClose(dirty)
	if err := h.coord.ConfirmDiscard(dirty); err != nil {
		t.Fatalf("confirm discard: %v", err)
	}
	if dirty.Dirty() || h.ctl.Phase() != view.PhaseLoaded {
		t.Errorf("expected discarded draft and closed modal, phase=%s", h.ctl.Phase())
	}
}

func TestDraft_Changed(t *testing.T) {
	d := NewDraft(diagnosticForm{Status: "pending"})
	if d.Dirty() {
		t.Fatal("new draft should be pristine")
	}
	d.Set(diagnosticForm{Status: "completed", TestType: "MRI"})
	got := d.Changed()
	if len(got) != 2 || got[0] != "test_type" || got[1] != "status" {
		t.Fatalf("unexpected changed fields %v", got)
	}
	d.Set(diagnosticForm{Status: "pending"})
	if d.Dirty() {
		t.Error("reverting every field should make the draft pristine again")
	}

	m := NewDraft(map[string]interface{}{"a": 1.0, "b": ""})
	m.Set(map[string]interface{}{"a": 1.0})
	if m.Dirty() {
		t.Error("a missing key should equal an empty field")
	}
	m.Set(map[string]interface{}{"a": 2.0, "c": "x"})
	if got := m.Changed(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("unexpected changed keys %v", got)
	}
}

func TestDefaultMessages(t *testing.T) {
	m := DefaultMessages("patient")
	if m.Created != "Patient created successfully" || m.DeleteFailed != "Failed to delete patient" {
		t.Fatalf("unexpected messages %+v", m)
	}
}
