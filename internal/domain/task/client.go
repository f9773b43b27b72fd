package task

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

type Client = resource.Client[wire, Task]

func NewClient(api *apiclient.Client, logger zerolog.Logger) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Task]{
		Name:      resourceName,
		Routes:    resource.REST(resourceName).WithPatch(),
		Params:    []string{"status"},
		Normalize: normalize,
	})
}
