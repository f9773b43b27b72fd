package report

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Client lists, generates and deletes reports, and fetches their rendered
// files.
type Client struct {
	*resource.Client[wire, Report]
	logger zerolog.Logger
}

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	legacyRoutes := resource.REST(resourceName)
	legacyRoutes.Create = resourceName + "/generate/"
	legacyRoutes.Delete = resourceName + "/{id}/delete/"
	return &Client{
		Client: resource.NewClient(api, logger, resource.Spec[wire, Report]{
			Name:      resourceName,
			Routes:    resource.Pick(legacy, resourceName, legacyRoutes),
			Params:    []string{"category"},
			Normalize: normalize,
		}),
		logger: logger.With().Str("resource", resourceName).Logger(),
	}
}

// View fetches the rendered file of report id.
func (c *Client) View(ctx context.Context, id resource.ID) (*apiclient.Blob, error) {
	if id.IsTemp() {
		return nil, resource.ErrTempID
	}
	return c.download(ctx, strings.ReplaceAll(viewPath, "{id}", url.PathEscape(id.String())), nil)
}

// ExportAll fetches every report of category as one file. A blank category
// exports all of them.
func (c *Client) ExportAll(ctx context.Context, category, format string) (*apiclient.Blob, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if format != "" {
		q.Set("format", format)
	}
	return c.download(ctx, exportPath, q)
}

func (c *Client) download(ctx context.Context, path string, q url.Values) (*apiclient.Blob, error) {
	blob, err := c.API().Download(ctx, path, q)
	if err != nil {
		c.logger.Error().Err(err).
			Str("op", "download").
			Str("path", path).
			Int("status", apiclient.StatusOf(err)).
			Str("request_id", apiclient.RequestIDFromContext(ctx)).
			Msg("report download failed")
		return nil, err
	}
	return blob, nil
}
