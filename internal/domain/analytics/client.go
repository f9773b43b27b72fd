package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/metrics"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const (
	summaryPath      = "analytics/summary/"
	appointmentsPath = "analytics/appointments/"
	diagnosticsPath  = "analytics/diagnostics/"
)

// Client reads the backend's analytics aggregates. It never writes.
type Client struct {
	api    *apiclient.Client
	logger zerolog.Logger
}

func NewClient(api *apiclient.Client, logger zerolog.Logger) *Client {
	return &Client{api: api, logger: logger.With().Str("resource", "analytics").Logger()}
}

func (c *Client) Summary(ctx context.Context, rng string) (Summary, error) {
	var w summaryWire
	if err := c.get(ctx, summaryPath, rng, &w); err != nil {
		return Summary{}, err
	}
	return normalizeSummary(w), nil
}

func (c *Client) Appointments(ctx context.Context, rng string) ([]Point, error) {
	return c.series(ctx, appointmentsPath, rng)
}

func (c *Client) Diagnostics(ctx context.Context, rng string) ([]Point, error) {
	return c.series(ctx, diagnosticsPath, rng)
}

// Load fetches the three aggregates in parallel under policy.
func (c *Client) Load(ctx context.Context, policy view.Policy, rng string) (Data, error) {
	var d Data
	err := view.Batch(ctx, policy,
		view.Fetch("summary", &d.Summary, func(ctx context.Context) (Summary, error) { return c.Summary(ctx, rng) }),
		view.Fetch("appointments", &d.Appointments, func(ctx context.Context) ([]Point, error) { return c.Appointments(ctx, rng) }),
		view.Fetch("diagnostics", &d.Diagnostics, func(ctx context.Context) ([]Point, error) { return c.Diagnostics(ctx, rng) }),
	)
	return d.orEmpty(), err
}

// series accepts a bare array or an object wrapping it under "results" or
// "data".
func (c *Client) series(ctx context.Context, path, rng string) ([]Point, error) {
	var raw json.RawMessage
	if err := c.get(ctx, path, rng, &raw); err != nil {
		return nil, err
	}
	var wires []pointWire
	if err := json.Unmarshal(raw, &wires); err != nil {
		var env struct {
			Results []pointWire `json:"results"`
			Data    []pointWire `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, resource.Invalid(path, "body", "not a list")
		}
		wires = env.Results
		if wires == nil {
			wires = env.Data
		}
	}
	out := make([]Point, 0, len(wires))
	for _, w := range wires {
		p, err := normalizePoint(path, w)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path, rng string, out interface{}) error {
	q := url.Values{}
	if rng != "" {
		q.Set("range", rng)
	}
	start := time.Now()
	err := c.api.Do(ctx, http.MethodGet, path, q, nil, out)
	status := http.StatusOK
	if err != nil {
		status = apiclient.StatusOf(err)
		c.logger.Error().Err(err).
			Str("path", path).
			Int("status", status).
			Str("request_id", apiclient.RequestIDFromContext(ctx)).
			Msg("analytics call failed")
	}
	metrics.ObserveBackendCall("analytics", path, status, time.Since(start))
	return err
}
