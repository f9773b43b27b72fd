package task

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "workspace/tasks"

var (
	Statuses   = []string{"todo", "in-progress", "done"}
	Priorities = []string{"low", "normal", "high"}
)

type wire struct {
	ID          resource.ID   `json:"id"`
	Title       resource.Text `json:"title"`
	Description resource.Text `json:"description"`
	Status      resource.Text `json:"status"`
	Priority    resource.Text `json:"priority"`
	DueDate     resource.Text `json:"due_date"`
	Patient     resource.ID   `json:"patient"`
	PatientName resource.Text `json:"patient_name"`
	CreatedAt   resource.Text `json:"created_at"`
}

// Task is a to-do item on a clinician's workspace board.
type Task struct {
	ID          resource.ID `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	PatientID   resource.ID `json:"patientId,omitempty"`
	PatientName string      `json:"patientName,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Overdue reports whether t is unfinished and past its due date at now.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != "done" && t.DueDate != nil && t.DueDate.Before(now)
}

type CreateData struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	DueDate     string      `json:"due_date,omitempty"`
	Patient     resource.ID `json:"patient,omitempty"`
}

func normalize(w wire) (Task, error) {
	if w.ID.IsZero() {
		return Task{}, resource.Missing(resourceName, "id")
	}
	if w.Title == "" {
		return Task{}, resource.Missing(resourceName, "title")
	}
	created, err := resource.Date(resourceName, "created_at", w.CreatedAt)
	if err != nil {
		return Task{}, err
	}
	t := Task{
		ID:          w.ID,
		Title:       string(w.Title),
		Description: string(w.Description),
		Status:      w.Status.Or("todo"),
		Priority:    w.Priority.Or("normal"),
		PatientID:   w.Patient,
		PatientName: string(w.PatientName),
		CreatedAt:   created,
	}
	if w.DueDate != "" {
		due, err := resource.Date(resourceName, "due_date", w.DueDate)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

// Board groups tasks by status column.
type Board struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"inProgress"`
	Done       []Task `json:"done"`
	Overdue    int    `json:"overdue"`
}

func board(tasks []Task, now time.Time) Board {
	b := Board{Todo: []Task{}, InProgress: []Task{}, Done: []Task{}}
	for _, t := range tasks {
		switch t.Status {
		case "done":
			b.Done = append(b.Done, t)
		case "in-progress":
			b.InProgress = append(b.InProgress, t)
		default:
			b.Todo = append(b.Todo, t)
		}
		if t.Overdue(now) {
			b.Overdue++
		}
	}
	return b
}

func dueKey(t Task) time.Time {
	if t.DueDate == nil {
		return time.Time{}
	}
	return *t.DueDate
}

var filterSpec = view.FilterSpec[Task]{
	Search: []func(Task) string{
		func(t Task) string { return t.Title },
		func(t Task) string { return t.Description },
		func(t Task) string { return t.PatientName },
	},
	Status: func(t Task) string { return t.Status },
	Sorts: map[string]view.SortKey[Task]{
		"due":     view.TimeKey(dueKey),
		"created": view.TimeKey(func(t Task) time.Time { return t.CreatedAt }),
		"title":   view.TextKey(func(t Task) string { return t.Title }),
	},
	DefaultSort: "due",
}
