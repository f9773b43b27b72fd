package chat

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "chat/messages"

type wire struct {
	ID         resource.ID   `json:"id"`
	Room       resource.Text `json:"room"`
	Sender     resource.ID   `json:"sender"`
	SenderName resource.Text `json:"sender_name"`
	Content    resource.Text `json:"content"`
	Message    resource.Text `json:"message"`
	Timestamp  resource.Text `json:"timestamp"`
	CreatedAt  resource.Text `json:"created_at"`
}

type Message struct {
	ID         resource.ID `json:"id"`
	Room       string      `json:"room"`
	SenderID   resource.ID `json:"senderId"`
	SenderName string      `json:"senderName"`
	Content    string      `json:"content"`
	SentAt     time.Time   `json:"sentAt"`
}

type CreateData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// normalize accepts the message text under content or message, and the send
// time under timestamp or created_at.
func normalize(w wire) (Message, error) {
	if w.ID.IsZero() {
		return Message{}, resource.Missing(resourceName, "id")
	}
	sent, err := resource.Date(resourceName, "timestamp", resource.Text(w.Timestamp.Or(string(w.CreatedAt))))
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         w.ID,
		Room:       string(w.Room),
		SenderID:   w.Sender,
		SenderName: w.SenderName.Or("Unknown"),
		Content:    w.Content.Or(string(w.Message)),
		SentAt:     sent,
	}, nil
}

var filterSpec = view.FilterSpec[Message]{
	Search: []func(Message) string{
		func(m Message) string { return m.Content },
		func(m Message) string { return m.SenderName },
	},
	Sorts: map[string]view.SortKey[Message]{
		"sent": view.TimeKey(func(m Message) time.Time { return m.SentAt }),
	},
	DefaultSort: "sent",
}
