package patient

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Client is the patients resource client.
type Client struct {
	*resource.Client[wire, Patient]
}

// NewClient creates a Client. legacy keeps the backend's create/update/delete
// path suffixes.
func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return &Client{resource.NewClient(api, logger, resource.Spec[wire, Patient]{
		Name:      resourceName,
		Routes:    resource.Pick(legacy, resourceName, resource.Suffixed(resourceName)),
		Params:    []string{"search", "status"},
		Normalize: normalize,
	})}
}

// Search lists patients whose name, email or phone matches term. A blank term
// lists every patient.
func (c *Client) Search(ctx context.Context, term string) ([]Patient, error) {
	return c.List(ctx, resource.Query{"search": term})
}

// IDs lists the ids of every patient, for forms that reference a patient.
func (c *Client) IDs(ctx context.Context) ([]resource.ID, error) {
	ps, err := c.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return IDs(ps), nil
}

// IDs returns the ids of ps.
func IDs(ps []Patient) []resource.ID {
	ids := make([]resource.ID, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}
