package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/campusbbs/events"
)

// Comment is a node of a post's comment tree. ParentID is empty for top-level comments.
type Comment struct {
	ID        string     `json:"comment_id"`
	PostID    string     `json:"post_id"`
	AuthorID  string     `json:"author_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"time"`
	Replies   []*Comment `json:"replies"`

	sink events.Sink
}

func newComment(postID, authorID, parentID, content string, sink events.Sink) *Comment {
	return &Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: Now(),
		Replies:   []*Comment{},
		sink:      sink,
	}
}

// Reply appends a child comment and notifies the author of c.
func (c *Comment) Reply(replier *User, content string) *Comment {
	if replier == nil {
		return nil
	}
	child := newComment(c.PostID, replier.ID, c.ID, content, c.sink)
	c.Replies = append(c.Replies, child)
	c.emit(events.Event{
		Type:        events.ReplyCreated,
		ActorID:     replier.ID,
		ActorName:   replier.Nickname,
		RecipientID: c.AuthorID,
		SubjectID:   c.ID,
		PostID:      c.PostID,
		Message:     fmt.Sprintf("%s 回复了你的评论：%s", replier.Nickname, content),
		CreatedAt:   child.CreatedAt,
	})
	return child
}

// Walk visits c and its descendants depth-first. Returning false stops the walk.
func (c *Comment) Walk(fn func(*Comment) bool) bool {
	if !fn(c) {
		return false
	}
	for _, r := range c.Replies {
		if !r.Walk(fn) {
			return false
		}
	}
	return true
}

// CountReplies counts every descendant of c.
func (c *Comment) CountReplies() int {
	n := 0
	for _, r := range c.Replies {
		n += 1 + r.CountReplies()
	}
	return n
}

func (c *Comment) bind(sink events.Sink) {
	c.Walk(func(n *Comment) bool {
		n.sink = sink
		if n.Replies == nil {
			n.Replies = []*Comment{}
		}
		return true
	})
}

func (c *Comment) emit(ev events.Event) {
	if c.sink != nil {
		c.sink.Emit(ev)
	}
}
