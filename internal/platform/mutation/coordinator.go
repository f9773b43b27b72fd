// Package mutation runs a screen's create, update and delete flows:
// validate, submit, refetch the whole list, notify. Nothing is patched into
// the screen's items locally; a successful mutation is always followed by
// exactly one refetch.
package mutation

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/metrics"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

// Screen is the part of a view.Controller a Coordinator drives.
type Screen interface {
	Screen() string
	Phase() view.Phase
	Transition(p view.Phase) error
	Settle() error
	SetSubmitting(v bool)
	Refetch(ctx context.Context) error
}

// SubmitError is a backend failure during submit. Message is the text shown
// to the user.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// Messages are the toasts a Coordinator raises.
type Messages struct {
	Created, Updated, Deleted                string
	CreateFailed, UpdateFailed, DeleteFailed string
}

// DefaultMessages builds toasts for an entity noun such as "patient".
func DefaultMessages(noun string) Messages {
	title := noun
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	return Messages{
		Created:      title + " created successfully",
		Updated:      title + " updated successfully",
		Deleted:      title + " deleted successfully",
		CreateFailed: "Failed to create " + noun,
		UpdateFailed: "Failed to update " + noun,
		DeleteFailed: "Failed to delete " + noun,
	}
}

// Coordinator runs mutations for one screen.
type Coordinator[T any] struct {
	screen   Screen
	notifier notification.Notifier
	rules    []Rule[T]
	messages Messages
	logger   zerolog.Logger
}

// NewCoordinator creates a Coordinator. rules run before every create and
// update.
func NewCoordinator[T any](screen Screen, notifier notification.Notifier, messages Messages, logger zerolog.Logger, rules ...Rule[T]) *Coordinator[T] {
	return &Coordinator[T]{
		screen:   screen,
		notifier: notifier,
		rules:    rules,
		messages: messages,
		logger:   logger,
	}
}

// Create validates draft and submits it. On success the screen is refetched,
// the draft reset and the modal closed. On failure the modal stays open with
// the draft intact.
func (c *Coordinator[T]) Create(ctx context.Context, draft *Draft[T], submit func(ctx context.Context, v T) error) error {
	return c.withDraft(ctx, "create", draft, c.messages.Created, c.messages.CreateFailed, func(ctx context.Context) error {
		return submit(ctx, draft.Current())
	})
}

// Update validates draft and submits it for id.
func (c *Coordinator[T]) Update(ctx context.Context, id resource.ID, draft *Draft[T], submit func(ctx context.Context, id resource.ID, v T) error) error {
	return c.withDraft(ctx, "update", draft, c.messages.Updated, c.messages.UpdateFailed, func(ctx context.Context) error {
		if id.IsZero() || id.IsTemp() {
			return &ValidationError{Field: "id", Message: "Record has not been saved yet"}
		}
		return submit(ctx, id, draft.Current())
	})
}

// Delete removes id. Deletes run from the list without a modal.
func (c *Coordinator[T]) Delete(ctx context.Context, id resource.ID, submit func(ctx context.Context, id resource.ID) error) error {
	if err := c.screen.Transition(view.PhaseValidating); err != nil {
		return err
	}
	if id.IsZero() || id.IsTemp() {
		verr := &ValidationError{Field: "id", Message: "Record has not been saved yet"}
		c.reject(ctx, "delete", verr)
		c.screen.Settle()
		return verr
	}
	err := c.submit(ctx, "delete", c.messages.Deleted, c.messages.DeleteFailed, func(ctx context.Context) error {
		return submit(ctx, id)
	})
	if err != nil {
		c.screen.Settle()
	}
	return err
}

// RequestClose reports whether closing the form needs a confirmation step.
// A pristine draft closes at once; a dirty one moves the screen to
// confirm-discard.
func (c *Coordinator[T]) RequestClose(draft *Draft[T]) (needsConfirm bool, err error) {
	if !draft.Dirty() {
		if c.screen.Phase() == view.PhaseModalOpen {
			return false, c.screen.Settle()
		}
		return false, nil
	}
	if err := c.openModal(); err != nil {
		return true, err
	}
	return true, c.screen.Transition(view.PhaseConfirmDiscard)
}

// ConfirmDiscard drops the draft and closes the form.
func (c *Coordinator[T]) ConfirmDiscard(draft *Draft[T]) error {
	draft.Reset()
	return c.screen.Settle()
}

// KeepEditing returns from the confirmation step to the open form.
func (c *Coordinator[T]) KeepEditing() error {
	return c.screen.Transition(view.PhaseModalOpen)
}

func (c *Coordinator[T]) openModal() error {
	if c.screen.Phase() == view.PhaseModalOpen {
		return nil
	}
	return c.screen.Transition(view.PhaseModalOpen)
}

func (c *Coordinator[T]) withDraft(ctx context.Context, kind string, draft *Draft[T], okMsg, failMsg string, send func(context.Context) error) error {
	if err := c.openModal(); err != nil {
		return err
	}
	if err := c.screen.Transition(view.PhaseValidating); err != nil {
		return err
	}
	if err := Validate(draft.Current(), c.rules...); err != nil {
		c.reject(ctx, kind, err)
		c.screen.Transition(view.PhaseModalOpen)
		return err
	}

	if err := c.submit(ctx, kind, okMsg, failMsg, send); err != nil {
		c.screen.Transition(view.PhaseModalOpen)
		return err
	}
	draft.Reset()
	return nil
}

func (c *Coordinator[T]) reject(ctx context.Context, kind string, err error) {
	metrics.ObserveMutation(c.screen.Screen(), kind, "invalid")
	c.notify(ctx, notification.LevelError, Message(err, ""))
}

// submit runs send with the submit flag raised, then refetches once on
// success. It expects the screen to be in the validating phase.
func (c *Coordinator[T]) submit(ctx context.Context, kind, okMsg, failMsg string, send func(context.Context) error) error {
	if err := c.screen.Transition(view.PhaseSubmitting); err != nil {
		return err
	}
	c.screen.SetSubmitting(true)
	err := send(ctx)
	c.screen.SetSubmitting(false)

	var verr *ValidationError
	if errors.As(err, &verr) {
		c.reject(ctx, kind, err)
		return err
	}
	if err != nil {
		msg := Message(err, failMsg)
		metrics.ObserveMutation(c.screen.Screen(), kind, "failed")
		c.logger.Warn().Err(err).Str("screen", c.screen.Screen()).Str("kind", kind).Msg("mutation failed")
		c.notify(ctx, notification.LevelError, msg)
		return &SubmitError{Message: msg, Err: err}
	}

	metrics.ObserveMutation(c.screen.Screen(), kind, "ok")
	if rerr := c.screen.Refetch(ctx); rerr != nil && !errors.Is(rerr, view.ErrSuperseded) {
		c.logger.Warn().Err(rerr).Str("screen", c.screen.Screen()).Msg("refetch after mutation failed")
	}
	c.notify(ctx, notification.LevelSuccess, okMsg)
	return nil
}

func (c *Coordinator[T]) notify(ctx context.Context, level notification.Level, msg string) {
	if c.notifier != nil && msg != "" {
		c.notifier.Notify(ctx, level, c.screen.Screen(), msg)
	}
}
