package campaign

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "health-campaigns"

var Statuses = []string{"draft", "active", "completed", "cancelled"}

type wire struct {
	ID             resource.ID     `json:"id"`
	Title          resource.Text   `json:"title"`
	Description    resource.Text   `json:"description"`
	TargetAudience resource.Text   `json:"target_audience"`
	StartDate      resource.Text   `json:"start_date"`
	EndDate        resource.Text   `json:"end_date"`
	Status         resource.Text   `json:"status"`
	Participants   resource.Number `json:"participants"`
}

type Campaign struct {
	ID             resource.ID `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	TargetAudience string      `json:"targetAudience"`
	StartDate      time.Time   `json:"startDate"`
	EndDate        *time.Time  `json:"endDate,omitempty"`
	Status         string      `json:"status"`
	Participants   int         `json:"participants"`
}

type CreateData struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	Status         string `json:"status"`
}

func normalize(w wire) (Campaign, error) {
	if w.ID.IsZero() {
		return Campaign{}, resource.Missing(resourceName, "id")
	}
	if w.Title == "" {
		return Campaign{}, resource.Missing(resourceName, "title")
	}
	start, err := resource.Date(resourceName, "start_date", w.StartDate)
	if err != nil {
		return Campaign{}, err
	}
	c := Campaign{
		ID:             w.ID,
		Title:          string(w.Title),
		Description:    string(w.Description),
		TargetAudience: w.TargetAudience.Or("All patients"),
		StartDate:      start,
		Status:         w.Status.Or("draft"),
		Participants:   int(w.Participants.Value),
	}
	if w.EndDate != "" {
		end, err := resource.Date(resourceName, "end_date", w.EndDate)
		if err != nil {
			return Campaign{}, err
		}
		c.EndDate = &end
	}
	return c, nil
}

var filterSpec = view.FilterSpec[Campaign]{
	Search: []func(Campaign) string{
		func(c Campaign) string { return c.Title },
		func(c Campaign) string { return c.TargetAudience },
	},
	Status: func(c Campaign) string { return c.Status },
	Sorts: map[string]view.SortKey[Campaign]{
		"start":        view.TimeKey(func(c Campaign) time.Time { return c.StartDate }),
		"title":        view.TextKey(func(c Campaign) string { return c.Title }),
		"participants": view.NumberKey(func(c Campaign) float64 { return float64(c.Participants) }),
	},
	DefaultSort: "start",
}
