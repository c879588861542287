package services

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/events"
	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/session"
	"github.com/cppla/campusbbs/strategy"
	"github.com/cppla/campusbbs/utils"
)

// PostDetail is a post as one reader sees it. RealAuthorID is filled for
// moderators only.
type PostDetail struct {
	models.PostDetailView
	AuthorID     string `json:"author_id,omitempty"`
	RealAuthorID string `json:"real_author_id,omitempty"`
}

// FeedPage is one page of list rows plus the size of the whole result.
type FeedPage struct {
	Posts    []models.PostListView `json:"posts"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// Stats are forum-wide counters.
type Stats struct {
	Users     int `json:"users"`
	Posts     int `json:"posts"`
	Published int `json:"published"`
	Comments  int `json:"comments"`
	HotPosts  int `json:"hot_posts"`
	Reports   int `json:"reports"`
}

// CreatePost builds a draft and, when asked, publishes it right away.
func (f *Forum) CreatePost(sess *session.Session, req CreatePostRequest) (PostDetail, error) {
	if err := f.checkStruct(req); err != nil {
		return PostDetail{}, err
	}
	category, ok := models.ParseCategory(req.Category)
	if !ok {
		return PostDetail{}, errInput("unknown category " + req.Category)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return PostDetail{}, err
	}
	if !u.CanPostIn(category) {
		return PostDetail{}, fmt.Errorf("%w: only administrators post in %s", ErrForbidden, category.DisplayName())
	}

	p := models.NewPost(strings.TrimSpace(req.Title), req.Content, u.ID, category)
	if !p.IsPublishable() {
		return PostDetail{}, errInput(fmt.Sprintf("title must be 1-%d characters and content 1-%d", models.MaxTitleLength, models.MaxContentLength))
	}
	now := f.now()
	for _, in := range req.Images {
		img := models.NewPostImage(in.OriginalName, p.ID, in.FileSize, now)
		if !img.IsSupportedFileType() {
			return PostDetail{}, errInput("unsupported image type " + in.OriginalName)
		}
		p.AddImage(img)
	}
	if req.Publish {
		if req.Anonymous {
			p.PublishAnonymously()
		} else {
			p.Publish()
		}
	} else {
		p.Anonymous = req.Anonymous
	}

	p.Bind(f.bus)
	f.posts = append(f.posts, p)
	f.postByID[p.ID] = p
	u.AddPostID(p.ID)
	f.logger.Info("post created", zap.String("post_id", p.ID), zap.String("status", string(p.Status)))
	return f.detail(p, u), nil
}

// UpdatePost edits an editable post. Only its author may do so.
func (f *Forum) UpdatePost(sess *session.Session, id string, req UpdatePostRequest) (PostDetail, error) {
	if err := f.checkStruct(req); err != nil {
		return PostDetail{}, err
	}
	category, ok := models.ParseCategory(req.Category)
	if !ok {
		return PostDetail{}, errInput("unknown category " + req.Category)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return PostDetail{}, err
	}
	p, err := f.post(id)
	if err != nil {
		return PostDetail{}, err
	}
	if p.AuthorID != u.ID {
		return PostDetail{}, ErrForbidden
	}
	if !u.CanPostIn(category) {
		return PostDetail{}, ErrForbidden
	}
	if !p.IsEditable() {
		return PostDetail{}, fmt.Errorf("%w: post is %s", ErrConflict, p.Status.Name())
	}
	title := strings.TrimSpace(req.Title)
	candidate := models.Post{Title: title, Content: req.Content, Category: category}
	if !candidate.ValidateTitle() || !candidate.ValidateContent() {
		return PostDetail{}, errInput("title or content out of range")
	}
	p.UpdateContent(title, req.Content, category)
	return f.detail(p, u), nil
}

// PublishPost publishes the author's own draft.
func (f *Forum) PublishPost(sess *session.Session, id string, anonymous bool) (PostDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return PostDetail{}, err
	}
	p, err := f.post(id)
	if err != nil {
		return PostDetail{}, err
	}
	if p.AuthorID != u.ID {
		return PostDetail{}, ErrForbidden
	}
	if !p.IsPublishable() {
		return PostDetail{}, fmt.Errorf("%w: post cannot be published", ErrConflict)
	}
	if anonymous || p.Anonymous {
		p.PublishAnonymously()
	} else {
		p.Publish()
	}
	return f.detail(p, u), nil
}

// DeletePost soft-deletes the author's own post; an administrator deletes any
// post for good.
func (f *Forum) DeletePost(sess *session.Session, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return err
	}
	p, err := f.post(id)
	if err != nil {
		return err
	}
	switch {
	case u.CanModerate():
		if !p.ForceDelete() {
			return fmt.Errorf("%w: post already deleted", ErrConflict)
		}
		f.moderated(u, p, "删除")
	case p.AuthorID == u.ID:
		if p.Status == models.StatusDeleted {
			return fmt.Errorf("%w: post already deleted", ErrConflict)
		}
		p.SoftDelete()
	default:
		return ErrForbidden
	}
	return nil
}

// RestorePost brings back a soft-deleted post.
func (f *Forum) RestorePost(sess *session.Session, id string) (PostDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return PostDetail{}, err
	}
	p, err := f.post(id)
	if err != nil {
		return PostDetail{}, err
	}
	if p.AuthorID != u.ID && !u.CanModerate() {
		return PostDetail{}, ErrForbidden
	}
	if !p.Restore() {
		return PostDetail{}, fmt.Errorf("%w: post cannot be restored", ErrConflict)
	}
	return f.detail(p, u), nil
}

// TransitionPost moves a post along the status table. Administrators only.
func (f *Forum) TransitionPost(sess *session.Session, id, status string) (PostDetail, error) {
	target, ok := models.ParseStatus(status)
	if !ok {
		return PostDetail{}, errInput("unknown status " + status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return PostDetail{}, err
	}
	if !u.CanModerate() {
		return PostDetail{}, ErrForbidden
	}
	p, err := f.post(id)
	if err != nil {
		return PostDetail{}, err
	}
	from := p.Status
	if !p.SafeTransitionTo(target) {
		return PostDetail{}, fmt.Errorf("%w: %s cannot become %s", ErrConflict, from.Name(), target.Name())
	}
	f.moderated(u, p, "设为"+target.Name())
	return f.detail(p, u), nil
}

// ViewPost returns a post and counts the view. Invisible posts are shown only
// to their author and to administrators, and are not counted.
func (f *Forum) ViewPost(sess *session.Session, id string) (PostDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.post(id)
	if err != nil {
		return PostDetail{}, err
	}
	v := f.viewer(sess)
	if !p.IsVisible() {
		if v == nil || (v.ID != p.AuthorID && !v.CanModerate()) {
			return PostDetail{}, ErrNotFound
		}
		return f.detail(p, v), nil
	}
	p.IncrementViewCount()
	f.viewed = true
	return f.detail(p, v), nil
}

// LikePost adds a like and notifies the author. Regular users only.
func (f *Forum) LikePost(sess *session.Session, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return 0, err
	}
	if !u.CanLike() {
		return 0, ErrForbidden
	}
	p, err := f.post(id)
	if err != nil {
		return 0, err
	}
	if !p.IsVisible() {
		return 0, ErrNotFound
	}
	p.IncrementLikeCount()
	f.bus.Emit(events.Event{
		Type:        events.PostLiked,
		ActorID:     u.ID,
		ActorName:   u.Nickname,
		RecipientID: p.AuthorID,
		SubjectID:   p.ID,
		PostID:      p.ID,
		Message:     fmt.Sprintf("%s 赞了你的帖子《%s》", u.Nickname, p.Title),
		CreatedAt:   f.now(),
	})
	return p.LikeCount, nil
}

// AddComment comments on a commentable post.
func (f *Forum) AddComment(sess *session.Session, postID, content string) (models.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.CommentView{}, errInput("comment is empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return models.CommentView{}, err
	}
	p, err := f.post(postID)
	if err != nil {
		return models.CommentView{}, err
	}
	c := p.AddComment(u, content)
	if c == nil {
		return models.CommentView{}, fmt.Errorf("%w: post is not open for comments", ErrConflict)
	}
	return f.commentView(c), nil
}

// ReplyComment answers any comment of a commentable post.
func (f *Forum) ReplyComment(sess *session.Session, postID, commentID, content string) (models.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.CommentView{}, errInput("reply is empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.actor(sess)
	if err != nil {
		return models.CommentView{}, err
	}
	p, err := f.post(postID)
	if err != nil {
		return models.CommentView{}, err
	}
	if p.FindComment(commentID) == nil {
		return models.CommentView{}, ErrNotFound
	}
	c := p.ReplyTo(commentID, u, content)
	if c == nil {
		return models.CommentView{}, fmt.Errorf("%w: post is not open for comments", ErrConflict)
	}
	return f.commentView(c), nil
}

// Feed filters visible posts by category and keyword, sorts them, and cuts
// out one page.
func (f *Forum) Feed(q FeedQuery) (FeedPage, error) {
	var category models.PostCategory
	if strings.TrimSpace(q.Category) != "" {
		c, ok := models.ParseCategory(q.Category)
		if !ok {
			return FeedPage{}, errInput("unknown category " + q.Category)
		}
		category = c
	}
	page, size := f.pageBounds(q.Page, q.PageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	list := strategy.Filter(f.posts, strategy.Visible)
	if category != "" {
		list = strategy.Filter(list, strategy.InCategory(category))
	}
	var searcher strategy.Searcher = strategy.TitleKeyword{}
	if strings.EqualFold(q.SearchIn, "content") {
		searcher = strategy.ContentKeyword{}
	}
	list = searcher.Search(list, q.Keyword)
	strategy.SorterByName(q.Sort).Sort(list)

	out := FeedPage{Total: len(list), Page: page, PageSize: size, Posts: []models.PostListView{}}
	if page-1 >= (len(list)+size-1)/size {
		return out, nil
	}
	start := (page - 1) * size
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	for _, p := range list[start:end] {
		out.Posts = append(out.Posts, f.listView(p))
	}
	return out, nil
}

// HotPosts returns visible posts above the hot threshold, hottest first.
func (f *Forum) HotPosts(limit int) []models.PostListView {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := strategy.Filter(f.posts, strategy.Visible)
	list = strategy.Filter(list, strategy.HotterThan(f.opts.HotThreshold))
	strategy.ByHotness{}.Sort(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]models.PostListView, 0, len(list))
	for _, p := range list {
		out = append(out, f.listView(p))
	}
	return out
}

// UserPosts lists a user's posts, newest first. Authors and administrators see
// drafts and deleted posts too. Anonymous posts are hidden from other readers.
func (f *Forum) UserPosts(sess *session.Session, userID string) ([]models.PostListView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	v := f.viewer(sess)
	privileged := v != nil && (v.ID == owner.ID || v.CanModerate())

	var list []*models.Post
	for _, id := range owner.PostIDs {
		p, ok := f.postByID[id]
		if !ok {
			continue
		}
		if !privileged && (!p.IsVisible() || p.Anonymous) {
			continue
		}
		list = append(list, p)
	}
	strategy.ByTime{}.Sort(list)
	out := make([]models.PostListView, 0, len(list))
	for _, p := range list {
		out = append(out, f.listView(p))
	}
	return out, nil
}

// Stats counts users, posts and comments.
func (f *Forum) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Stats{Users: len(f.users), Posts: len(f.posts), Reports: len(f.reports)}
	for _, p := range f.posts {
		if p.Status == models.StatusPublished && !p.ForceDeleted {
			s.Published++
		}
		if p.IsVisible() && p.IsHot(f.opts.HotThreshold) {
			s.HotPosts++
		}
		s.Comments += p.CommentCount
	}
	return s
}

func (f *Forum) moderated(admin *models.User, p *models.Post, action string) {
	f.bus.Emit(events.Event{
		Type:        events.PostModerated,
		ActorID:     admin.ID,
		ActorName:   admin.Nickname,
		RecipientID: p.AuthorID,
		SubjectID:   p.ID,
		PostID:      p.ID,
		Message:     fmt.Sprintf("管理员将你的帖子《%s》%s", p.Title, action),
		CreatedAt:   f.now(),
	})
	f.logger.Info("post moderated", zap.String("post_id", p.ID), zap.String("status", string(p.Status)), zap.String("by", admin.ID))
}

// authorLabel prefers the nickname over the id based label for named posts.
func (f *Forum) authorLabel(p *models.Post) string {
	if !p.Anonymous {
		if u, ok := f.byID[p.AuthorID]; ok {
			return u.Nickname
		}
	}
	return p.DisplayAuthor()
}

func (f *Forum) listView(p *models.Post) models.PostListView {
	v := p.ListView(f.opts.HotThreshold)
	v.Author = f.authorLabel(p)
	v.RelativeTime = f.relative(p.PublishTime)
	return v
}

func (f *Forum) detail(p *models.Post, viewer *models.User) PostDetail {
	d := PostDetail{PostDetailView: p.DetailView(f.opts.HotThreshold)}
	d.Author = f.authorLabel(p)
	d.RelativeTime = f.relative(p.PublishTime)
	for i := range d.Comments {
		f.stampComment(&d.Comments[i], p.CommentList[i])
	}
	if !p.Anonymous {
		d.AuthorID = p.AuthorID
	}
	if id, ok := p.RealAuthorFor(viewer); ok {
		d.RealAuthorID = id
	}
	return d
}

func (f *Forum) commentView(c *models.Comment) models.CommentView {
	v := c.View()
	f.stampComment(&v, c)
	return v
}

// stampComment fills relative times down a view tree built from c.
func (f *Forum) stampComment(v *models.CommentView, c *models.Comment) {
	v.RelativeTime = f.relative(c.CreatedAt)
	for i := range v.Replies {
		f.stampComment(&v.Replies[i], c.Replies[i])
	}
}

func (f *Forum) relative(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return utils.RelativeTime(t, f.now())
}

func (f *Forum) pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = f.opts.DefaultPageSize
	}
	if size > f.opts.MaxPageSize {
		size = f.opts.MaxPageSize
	}
	return page, size
}
