// Package events carries forum notifications from the entity that raised them to
// the users who should receive them.
package events

import "time"

// Type tags a notification.
type Type string

const (
	CommentCreated Type = "comment_created"
	ReplyCreated   Type = "reply_created"
	PostLiked      Type = "post_liked"
	PostModerated  Type = "post_moderated"
)

// Event is a single notification. It is a value and is copied on delivery.
type Event struct {
	Type        Type      `json:"type"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	RecipientID string    `json:"recipient_id"`
	SubjectID   string    `json:"subject_id"`
	PostID      string    `json:"post_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Observer receives events. Notify must not block.
type Observer interface {
	ObserverID() string
	Notify(Event)
}

// Sink is the only thing an entity sees of the delivery machinery.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
