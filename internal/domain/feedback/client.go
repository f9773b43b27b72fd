package feedback

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

type Client = resource.Client[wire, Feedback]

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Feedback]{
		Name:      resourceName,
		Routes:    resource.Pick(legacy, resourceName, resource.Suffixed(resourceName).WithPatch()),
		Params:    []string{"category", "status"},
		Normalize: normalize,
	})
}
