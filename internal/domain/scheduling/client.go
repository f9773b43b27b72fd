package scheduling

import (
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Client is the appointments resource client. Appointments are updated with
// PATCH and use bare REST paths under both path styles.
type Client = resource.Client[wire, Appointment]

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	return resource.NewClient(api, logger, resource.Spec[wire, Appointment]{
		Name:      resourceName,
		Routes:    resource.Pick(legacy, resourceName, resource.REST(resourceName).WithPatch()),
		Params:    []string{"date", "patient_id", "status"},
		Normalize: normalize,
	})
}
