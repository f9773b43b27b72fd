package campaign

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

type Client = resource.Client[wire, Campaign]

// NewClient creates the health campaigns client. Campaigns use bare REST
// routes in both path styles.
func NewClient(api *apiclient.Client, logger zerolog.Logger) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Campaign]{
		Name:      resourceName,
		Routes:    resource.REST(resourceName),
		Params:    []string{"status"},
		Normalize: normalize,
	})
}
