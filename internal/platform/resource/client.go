// Package resource implements the generic per-resource REST client. A
// resource package supplies its wire struct W, its view model V, its routes,
// and a Normalize function; the client handles transport, list envelopes,
// logging and metrics.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/metrics"
)

// ErrTempID is returned when a placeholder id would be sent to the backend.
var ErrTempID = errors.New("temporary id cannot be submitted")

// Query holds list filters. Empty values are not sent.
type Query map[string]string

func (q Query) values(allowed []string) url.Values {
	v := url.Values{}
	for k, val := range q {
		if val == "" {
			continue
		}
		if len(allowed) > 0 && !contains(allowed, k) {
			continue
		}
		v.Set(k, val)
	}
	return v
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Spec describes one backend resource.
type Spec[W any, V any] struct {
	// Name labels logs and metrics, e.g. "patients".
	Name   string
	Routes Routes
	// Params lists the query parameters List forwards. Empty forwards all.
	Params    []string
	Normalize func(W) (V, error)
}

// Client performs CRUD calls for one resource.
type Client[W any, V any] struct {
	api    *apiclient.Client
	spec   Spec[W, V]
	logger zerolog.Logger
}

// NewClient creates a Client for spec.
func NewClient[W any, V any](api *apiclient.Client, logger zerolog.Logger, spec Spec[W, V]) *Client[W, V] {
	return &Client[W, V]{
		api:    api,
		spec:   spec,
		logger: logger.With().Str("resource", spec.Name).Logger(),
	}
}

// Name returns the resource name.
func (c *Client[W, V]) Name() string { return c.spec.Name }

// API returns the shared HTTP client, for resource-specific endpoints.
func (c *Client[W, V]) API() *apiclient.Client { return c.api }

// List fetches all records matching q.
func (c *Client[W, V]) List(ctx context.Context, q Query) ([]V, error) {
	var raw json.RawMessage
	path := c.spec.Routes.List
	err := c.call(ctx, "list", http.MethodGet, path, func() error {
		return c.api.Do(ctx, http.MethodGet, path, q.values(c.spec.Params), nil, &raw)
	})
	if err != nil {
		return nil, err
	}
	wires, err := c.decodeList(raw)
	if err != nil {
		c.logFailure(ctx, "list", http.MethodGet, path, err)
		return nil, err
	}
	out := make([]V, 0, len(wires))
	for i := range wires {
		v, err := c.spec.Normalize(wires[i])
		if err != nil {
			c.logFailure(ctx, "list", http.MethodGet, path, err)
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get fetches one record.
func (c *Client[W, V]) Get(ctx context.Context, id ID) (V, error) {
	var zero V
	if id.IsTemp() {
		return zero, ErrTempID
	}
	return c.single(ctx, "get", http.MethodGet, expand(c.spec.Routes.Get, id), nil)
}

// Create submits payload, a *CreateData shape.
func (c *Client[W, V]) Create(ctx context.Context, payload interface{}) (V, error) {
	return c.single(ctx, "create", http.MethodPost, c.spec.Routes.Create, payload)
}

// Update submits partial, a subset of the *CreateData fields.
func (c *Client[W, V]) Update(ctx context.Context, id ID, partial interface{}) (V, error) {
	var zero V
	if id.IsTemp() {
		return zero, ErrTempID
	}
	method := c.spec.Routes.UpdateMethod
	if method == "" {
		method = http.MethodPut
	}
	return c.single(ctx, "update", method, expand(c.spec.Routes.Update, id), partial)
}

// Delete removes a record.
func (c *Client[W, V]) Delete(ctx context.Context, id ID) error {
	if id.IsTemp() {
		return ErrTempID
	}
	path := expand(c.spec.Routes.Delete, id)
	return c.call(ctx, "delete", http.MethodDelete, path, func() error {
		return c.api.Do(ctx, http.MethodDelete, path, nil, nil, nil)
	})
}

// single runs a call that returns at most one record. An empty response body
// yields the zero view model.
func (c *Client[W, V]) single(ctx context.Context, op, method, path string, body interface{}) (V, error) {
	var zero V
	var raw json.RawMessage
	err := c.call(ctx, op, method, path, func() error {
		return c.api.Do(ctx, method, path, nil, body, &raw)
	})
	if err != nil {
		return zero, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return zero, nil
	}
	var w W
	if err := json.Unmarshal(raw, &w); err != nil {
		err = Invalid(c.spec.Name, "", err.Error())
		c.logFailure(ctx, op, method, path, err)
		return zero, err
	}
	v, err := c.spec.Normalize(w)
	if err != nil {
		c.logFailure(ctx, op, method, path, err)
		return zero, err
	}
	return v, nil
}

type envelope[W any] struct {
	Results *[]W `json:"results"`
	Data    *[]W `json:"data"`
}

func (c *Client[W, V]) decodeList(raw json.RawMessage) ([]W, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var ws []W
		if err := json.Unmarshal(raw, &ws); err != nil {
			return nil, Invalid(c.spec.Name, "", err.Error())
		}
		return ws, nil
	}
	var env envelope[W]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Invalid(c.spec.Name, "", err.Error())
	}
	switch {
	case env.Results != nil:
		return *env.Results, nil
	case env.Data != nil:
		return *env.Data, nil
	}
	return nil, Invalid(c.spec.Name, "results", "list response is neither an array nor a results/data envelope")
}

func (c *Client[W, V]) call(ctx context.Context, op, method, path string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := http.StatusOK
	if err != nil {
		status = apiclient.StatusOf(err)
		c.logFailure(ctx, op, method, path, err)
	}
	metrics.ObserveBackendCall(c.spec.Name, op, status, time.Since(start))
	return err
}

func (c *Client[W, V]) logFailure(ctx context.Context, op, method, path string, err error) {
	evt := c.logger.Error().Err(err).
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Str("request_id", apiclient.RequestIDFromContext(ctx))
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		evt = evt.Int("status", apiErr.Status)
		if len(apiErr.Body) > 0 {
			evt = evt.Str("body", truncate(string(apiErr.Body), 512))
		}
	}
	evt.Msg("backend call failed")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
