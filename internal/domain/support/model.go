package support

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "support-requests"

var (
	Priorities = []string{"low", "medium", "high", "urgent"}
	Statuses   = []string{"open", "in-progress", "resolved", "closed"}
)

// priorityRank orders priorities for sorting, most urgent last.
var priorityRank = map[string]float64{"low": 0, "medium": 1, "high": 2, "urgent": 3}

type wire struct {
	ID          resource.ID   `json:"id"`
	Subject     resource.Text `json:"subject"`
	Description resource.Text `json:"description"`
	Priority    resource.Text `json:"priority"`
	Status      resource.Text `json:"status"`
	RequestedBy resource.Text `json:"requested_by_name"`
	AssignedTo  resource.Text `json:"assigned_to_name"`
	CreatedAt   resource.Text `json:"created_at"`
	UpdatedAt   resource.Text `json:"updated_at"`
}

type Request struct {
	ID          resource.ID `json:"id"`
	Subject     string      `json:"subject"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status"`
	RequestedBy string      `json:"requestedBy"`
	AssignedTo  string      `json:"assignedTo"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type CreateData struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status,omitempty"`
}

func normalize(w wire) (Request, error) {
	if w.ID.IsZero() {
		return Request{}, resource.Missing(resourceName, "id")
	}
	if w.Subject == "" {
		return Request{}, resource.Missing(resourceName, "subject")
	}
	created, err := resource.Date(resourceName, "created_at", w.CreatedAt)
	if err != nil {
		return Request{}, err
	}
	updated, err := resource.Date(resourceName, "updated_at", w.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	if updated.IsZero() {
		updated = created
	}
	return Request{
		ID:          w.ID,
		Subject:     string(w.Subject),
		Description: string(w.Description),
		Priority:    w.Priority.Or("medium"),
		Status:      w.Status.Or("open"),
		RequestedBy: w.RequestedBy.Or("Unknown"),
		AssignedTo:  w.AssignedTo.Or("Unassigned"),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

var filterSpec = view.FilterSpec[Request]{
	Search: []func(Request) string{
		func(r Request) string { return r.Subject },
		func(r Request) string { return r.Description },
		func(r Request) string { return r.RequestedBy },
	},
	Status: func(r Request) string { return r.Status },
	Sorts: map[string]view.SortKey[Request]{
		"created":  view.TimeKey(func(r Request) time.Time { return r.CreatedAt }),
		"updated":  view.TimeKey(func(r Request) time.Time { return r.UpdatedAt }),
		"priority": view.NumberKey(func(r Request) float64 { return priorityRank[r.Priority] }),
		"subject":  view.TextKey(func(r Request) string { return r.Subject }),
	},
	DefaultSort: "created",
}
