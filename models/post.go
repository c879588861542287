package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cppla/campusbbs/events"
)

const (
	HotScoreViewWeight    = 0.3
	HotScoreLikeWeight    = 0.4
	HotScoreCommentWeight = 0.3

	// DefaultHotThreshold is the score a post must exceed to count as hot
	// when the forum is not configured otherwise.
	DefaultHotThreshold = 10.0

	MaxTitleLength   = 100
	MaxContentLength = 5000

	anonymousLabel = "某同学"
	unknownAuthor  = "匿名用户"
	listTimeLayout = "2006-01-02 15:04"
)

// Now is the clock used by the domain model.
var Now = time.Now

// Post is a forum thread. The zero value is not usable; build posts with NewPost.
type Post struct {
	ID           string       `json:"post_id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	AuthorID     string       `json:"author_id"`
	Category     PostCategory `json:"category"`
	Status       PostStatus   `json:"status"`
	PublishTime  time.Time    `json:"publish_time"`
	UpdateTime   time.Time    `json:"update_time"`
	ViewCount    int          `json:"view_count"`
	LikeCount    int          `json:"like_count"`
	CommentCount int          `json:"comment_count"`
	Images       []PostImage  `json:"post_images"`
	Anonymous    bool         `json:"is_anonymous"`
	Sensitive    bool         `json:"is_sensitive"`
	ForceDeleted bool         `json:"is_force_deleted"`
	CommentList  []*Comment   `json:"comments"`

	sink events.Sink
}

// NewPost creates a draft owned by authorID.
func NewPost(title, content, authorID string, category PostCategory) *Post {
	now := Now()
	return &Post{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     content,
		AuthorID:    authorID,
		Category:    category,
		Status:      StatusDraft,
		PublishTime: now,
		UpdateTime:  now,
		Images:      []PostImage{},
		CommentList: []*Comment{},
	}
}

// Bind attaches the event sink to the post and its whole comment tree. Posts
// loaded from a store must be bound before they can notify anyone.
func (p *Post) Bind(sink events.Sink) {
	p.sink = sink
	if p.Images == nil {
		p.Images = []PostImage{}
	}
	if p.CommentList == nil {
		p.CommentList = []*Comment{}
	}
	for _, c := range p.CommentList {
		c.bind(sink)
	}
}

func (p *Post) touch() { p.UpdateTime = Now() }

// Publish moves a draft to published and stamps both times.
func (p *Post) Publish() bool {
	if p.Status != StatusDraft {
		return false
	}
	now := Now()
	p.Status = StatusPublished
	p.PublishTime = now
	p.UpdateTime = now
	return true
}

// PublishAnonymously publishes and hides the author on success.
func (p *Post) PublishAnonymously() bool {
	if !p.Publish() {
		return false
	}
	p.Anonymous = true
	return true
}

// SoftDelete is a no-op on an already deleted post.
func (p *Post) SoftDelete() {
	if p.Status == StatusDeleted {
		return
	}
	p.Status = StatusDeleted
	p.touch()
}

// Restore brings a soft-deleted post back to published.
func (p *Post) Restore() bool {
	if p.Status != StatusDeleted || p.ForceDeleted {
		return false
	}
	p.Status = StatusPublished
	p.touch()
	return true
}

// ForceDelete deletes the post for good. It reports false when the post was
// already deleted.
func (p *Post) ForceDelete() bool {
	if p.Status == StatusDeleted {
		return false
	}
	p.Status = StatusDeleted
	p.ForceDeleted = true
	p.touch()
	return true
}

func (p *Post) CalculateHotScore() float64 {
	return float64(p.ViewCount)*HotScoreViewWeight +
		float64(p.LikeCount)*HotScoreLikeWeight +
		float64(p.CommentCount)*HotScoreCommentWeight
}

// IsHot reports whether the hot score exceeds threshold.
func (p *Post) IsHot(threshold float64) bool { return p.CalculateHotScore() > threshold }

func (p *Post) IncrementViewCount() {
	p.ViewCount++
	p.touch()
}

func (p *Post) IncrementLikeCount() {
	p.LikeCount++
	p.touch()
}

func (p *Post) IncrementCommentCount() {
	p.CommentCount++
	p.touch()
}

// AddComment appends a top-level comment and notifies the post author. It does
// nothing and returns nil unless the post is commentable.
func (p *Post) AddComment(commenter *User, content string) *Comment {
	if commenter == nil || !p.IsCommentable() {
		return nil
	}
	c := newComment(p.ID, commenter.ID, "", content, p.sink)
	p.CommentList = append(p.CommentList, c)
	p.IncrementCommentCount()
	p.emit(events.Event{
		Type:        events.CommentCreated,
		ActorID:     commenter.ID,
		ActorName:   commenter.Nickname,
		RecipientID: p.AuthorID,
		SubjectID:   p.ID,
		PostID:      p.ID,
		Message:     fmt.Sprintf("%s 评论了你的帖子《%s》：%s", commenter.Nickname, p.Title, content),
		CreatedAt:   c.CreatedAt,
	})
	return c
}

// ReplyTo answers the comment commentID anywhere in the tree. Replies count
// toward CommentCount and follow the same commentable rule as AddComment.
func (p *Post) ReplyTo(commentID string, replier *User, content string) *Comment {
	if replier == nil || !p.IsCommentable() {
		return nil
	}
	parent := p.FindComment(commentID)
	if parent == nil {
		return nil
	}
	reply := parent.Reply(replier, content)
	p.IncrementCommentCount()
	return reply
}

// FindComment searches the comment tree depth-first.
func (p *Post) FindComment(id string) *Comment {
	var found *Comment
	for _, c := range p.CommentList {
		c.Walk(func(n *Comment) bool {
			if n.ID == id {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// Comments returns a copy of the top-level comment slice.
func (p *Post) Comments() []*Comment {
	out := make([]*Comment, len(p.CommentList))
	copy(out, p.CommentList)
	return out
}

// AddImage appends a valid image. Invalid images are ignored.
func (p *Post) AddImage(img PostImage) bool {
	if !img.IsValid() {
		return false
	}
	p.Images = append(p.Images, img)
	p.touch()
	return true
}

// AddImages adds each valid image and returns how many were accepted.
func (p *Post) AddImages(imgs []PostImage) int {
	n := 0
	for _, img := range imgs {
		if p.AddImage(img) {
			n++
		}
	}
	return n
}

// RemoveImage drops the first attachment stored at the same path and name.
func (p *Post) RemoveImage(img PostImage) bool {
	for i, cur := range p.Images {
		if cur.Same(img) {
			p.Images = append(p.Images[:i], p.Images[i+1:]...)
			p.touch()
			return true
		}
	}
	return false
}

func (p *Post) ClearImages() {
	if len(p.Images) == 0 {
		return
	}
	p.Images = []PostImage{}
	p.touch()
}

func (p *Post) FindImageByOriginalName(name string) (PostImage, bool) {
	for _, img := range p.Images {
		if img.OriginalName == name {
			return img, true
		}
	}
	return PostImage{}, false
}

func (p *Post) ImageWebPaths() []string {
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, img.WebPath())
	}
	return out
}

func (p *Post) ThumbnailWebPaths() []string {
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, img.ThumbnailWebPath())
	}
	return out
}

// CanTransitionTo consults the status table. A force-deleted post never moves.
func (p *Post) CanTransitionTo(target PostStatus) bool {
	if p.ForceDeleted {
		return false
	}
	return p.Status.CanTransitionTo(target)
}

// SafeTransitionTo applies the transition only when the table allows it.
func (p *Post) SafeTransitionTo(target PostStatus) bool {
	if !p.CanTransitionTo(target) {
		return false
	}
	p.Status = target
	p.touch()
	return true
}

func (p *Post) ValidateTitle() bool {
	return strings.TrimSpace(p.Title) != "" && utf8.RuneCountInString(p.Title) <= MaxTitleLength
}

func (p *Post) ValidateContent() bool {
	return strings.TrimSpace(p.Content) != "" && utf8.RuneCountInString(p.Content) <= MaxContentLength
}

func (p *Post) ValidateCategory() bool {
	return p.Category.Valid()
}

// IsPublishable requires valid fields and a draft status.
func (p *Post) IsPublishable() bool {
	return p.ValidateTitle() && p.ValidateContent() && p.ValidateCategory() && p.Status == StatusDraft
}

// UpdateContent replaces the editable fields of a post that is still editable.
func (p *Post) UpdateContent(title, content string, category PostCategory) bool {
	if !p.IsEditable() {
		return false
	}
	p.Title = title
	p.Content = content
	p.Category = category
	p.touch()
	return true
}

// IsVisible hides deleted and force-deleted posts from readers.
func (p *Post) IsVisible() bool     { return p.Status.Visible() && !p.ForceDeleted }
func (p *Post) IsEditable() bool    { return p.Status.Editable() }
func (p *Post) IsCommentable() bool { return p.Status.Commentable() }

// CanBeEditedBy is true for the author while the post is still editable.
func (p *Post) CanBeEditedBy(userID string) bool {
	return userID != "" && userID == p.AuthorID && p.IsEditable()
}

// RealAuthorFor reveals the author of an anonymous post to moderators only.
func (p *Post) RealAuthorFor(viewer *User) (string, bool) {
	if viewer == nil || !viewer.CanModerate() {
		return "", false
	}
	return p.AuthorID, true
}

// DisplayAuthor is the author label shown in lists.
func (p *Post) DisplayAuthor() string {
	switch {
	case p.Anonymous:
		return anonymousLabel
	case p.AuthorID == "":
		return unknownAuthor
	case len(p.AuthorID) >= 8:
		return "用户" + p.AuthorID[:8]
	default:
		return "用户" + p.AuthorID
	}
}

// ContentSummary truncates the body to max runes and appends "...".
func (p *Post) ContentSummary(max int) string {
	if max < 0 {
		max = 0
	}
	runes := []rune(p.Content)
	if len(runes) <= max {
		return p.Content
	}
	return string(runes[:max]) + "..."
}

// ContentLines splits the body on newlines and drops blank lines.
func (p *Post) ContentLines() []string {
	lines := []string{}
	for _, line := range strings.Split(p.Content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (p *Post) CategoryDisplay() string {
	if !p.Category.Valid() {
		return "未分类"
	}
	return p.Category.DisplayText()
}

func (p *Post) FormattedPublishTime() string { return formatStamp(p.PublishTime) }
func (p *Post) FormattedUpdateTime() string  { return formatStamp(p.UpdateTime) }

// DaysSinceCreation counts whole days since publishing.
func (p *Post) DaysSinceCreation() int {
	if p.PublishTime.IsZero() {
		return 0
	}
	return int(Now().Sub(p.PublishTime).Hours() / 24)
}

func (p *Post) IsToday() bool {
	if p.PublishTime.IsZero() {
		return false
	}
	y1, m1, d1 := p.PublishTime.Date()
	y2, m2, d2 := Now().In(p.PublishTime.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ShortID is the first eight characters of the id followed by "...".
func (p *Post) ShortID() string {
	if len(p.ID) < 8 {
		return p.ID
	}
	return p.ID[:8] + "..."
}

func (p *Post) emit(ev events.Event) {
	if p.sink != nil {
		p.sink.Emit(ev)
	}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(listTimeLayout)
}
