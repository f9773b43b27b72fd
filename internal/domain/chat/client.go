package chat

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

type Client = resource.Client[wire, Message]

func NewClient(api *apiclient.Client, logger zerolog.Logger) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Message]{
		Name:      resourceName,
		Routes:    resource.REST(resourceName),
		Params:    []string{"room"},
		Normalize: normalize,
	})
}
