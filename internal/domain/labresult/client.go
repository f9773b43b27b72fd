package labresult

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Client is the lab results resource client plus the lab report upload
// endpoint.
type Client struct {
	*resource.Client[wire, LabResult]
	logger zerolog.Logger
}

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return &Client{
		Client: resource.NewClient(api, logger, resource.Spec[wire, LabResult]{
			Name:      resourceName,
			Routes:    resource.Pick(legacy, resourceName, resource.REST(resourceName)),
			Params:    []string{"patient_id", "status"},
			Normalize: normalize,
		}),
		logger: logger.With().Str("resource", "lab-reports").Logger(),
	}
}

// UploadReport sends file to the backend as multipart form data.
func (c *Client) UploadReport(ctx context.Context, patient resource.ID, title string, file apiclient.FilePart) (Report, error) {
	fields := map[string]string{"patient": patient.String()}
	if title != "" {
		fields["title"] = title
	}
	var w reportWire
	if err := c.API().Upload(ctx, reportsPath, fields, []apiclient.FilePart{file}, &w); err != nil {
		c.logger.Error().Err(err).
			Str("op", "upload").
			Str("path", reportsPath).
			Int("status", apiclient.StatusOf(err)).
			Str("request_id", apiclient.RequestIDFromContext(ctx)).
			Msg("lab report upload failed")
		return Report{}, err
	}
	r, err := normalizeReport(w)
	if err != nil {
		return Report{}, fmt.Errorf("upload lab report: %w", err)
	}
	return r, nil
}
