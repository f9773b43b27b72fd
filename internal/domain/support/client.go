package support

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

type Client = resource.Client[wire, Request]

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Request]{
		Name:      resourceName,
		Routes:    resource.Pick(legacy, resourceName, resource.REST(resourceName).WithPatch()),
		Params:    []string{"priority", "status"},
		Normalize: normalize,
	})
}
