package diagnostics

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Client is the diagnostics resource client.
type Client = resource.Client[wire, Diagnostic]

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Diagnostic]{
		Name:      resourceName,
		Routes:    resource.Pick(legacy, resourceName, resource.Suffixed(resourceName)),
		Params:    []string{"patient_id", "status"},
		Normalize: normalize,
	})
}
