package view

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy decides what a batch load does when some of its slots fail.
type Policy int

const (
	// SettleAll lets every slot finish; successful slots are kept and failed
	// slots are reported per slot.
	SettleAll Policy = iota
	// FailBatch fails the whole batch on the first slot failure and keeps no
	// slot's data.
	FailBatch
)

func (p Policy) String() string {
	if p == FailBatch {
		return "fail-batch"
	}
	return "settle"
}

// ParsePolicy parses "settle" or "fail-batch".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "settle":
		return SettleAll, nil
	case "fail-batch":
		return FailBatch, nil
	}
	return SettleAll, fmt.Errorf("unknown load policy %q", s)
}

// PartialLoadError reports the slots of a batch that failed.
type PartialLoadError struct {
	Policy Policy
	Total  int
	Errors map[string]error
}

func (e *PartialLoadError) Error() string {
	names := e.slots()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Errors[n].Error())
	}
	return fmt.Sprintf("%d of %d loads failed (%s)", len(names), e.Total, strings.Join(parts, "; "))
}

func (e *PartialLoadError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, n := range e.slots() {
		out = append(out, e.Errors[n])
	}
	return out
}

// Settled reports whether the successful slots were kept.
func (e *PartialLoadError) Settled() bool { return e.Policy == SettleAll }

// Failed returns the error of slot name, or nil.
func (e *PartialLoadError) Failed(name string) error { return e.Errors[name] }

// Messages returns a user-facing message per failed slot.
func (e *PartialLoadError) Messages() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for n := range e.Errors {
		out[n] = "Failed to load " + strings.ReplaceAll(n, "-", " ")
	}
	return out
}

func (e *PartialLoadError) slots() []string {
	names := make([]string, 0, len(e.Errors))
	for n := range e.Errors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Slot is one fetch of a batch. Its result is only written to its
// destination once the batch decides to keep it.
type Slot struct {
	Name  string
	fetch func(ctx context.Context) (commit func(), err error)
}

// Fetch builds a Slot that stores fn's result in dst.
func Fetch[T any](name string, dst *T, fn func(ctx context.Context) (T, error)) Slot {
	return Slot{
		Name: name,
		fetch: func(ctx context.Context) (func(), error) {
			v, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			return func() { *dst = v }, nil
		},
	}
}

type slotError struct {
	slot string
	err  error
}

func (e *slotError) Error() string { return e.slot + ": " + e.err.Error() }

// Batch issues every slot concurrently and joins them. It returns nil when all
// slots succeeded, otherwise a *PartialLoadError.
func Batch(ctx context.Context, policy Policy, slots ...Slot) error {
	if policy == FailBatch {
		return failBatch(ctx, slots)
	}
	return settleAll(ctx, slots)
}

func failBatch(ctx context.Context, slots []Slot) error {
	g, gctx := errgroup.WithContext(ctx)
	commits := make([]func(), len(slots))
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			commit, err := s.fetch(gctx)
			if err != nil {
				return &slotError{slot: s.Name, err: err}
			}
			commits[i] = commit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		se := err.(*slotError)
		return &PartialLoadError{Policy: FailBatch, Total: len(slots), Errors: map[string]error{se.slot: se.err}}
	}
	for _, commit := range commits {
		commit()
	}
	return nil
}

func settleAll(ctx context.Context, slots []Slot) error {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		failed  = map[string]error{}
		commits = make([]func(), len(slots))
	)
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			commit, err := s.fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[s.Name] = err
				return nil
			}
			commits[i] = commit
			return nil
		})
	}
	g.Wait()
	for _, commit := range commits {
		if commit != nil {
			commit()
		}
	}
	if len(failed) > 0 {
		return &PartialLoadError{Policy: SettleAll, Total: len(slots), Errors: failed}
	}
	return nil
}
