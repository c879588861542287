package models

// PostListView is the row rendered in the feed.
type PostListView struct {
	ID           string  `json:"post_id"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Summary      string  `json:"summary"`
	PublishTime  string  `json:"publish_time"`
	HotScore     float64 `json:"hot_score"`
	IsHot        bool    `json:"is_hot"`
	RelativeTime string  `json:"relative_time,omitempty"`
	Category     string  `json:"category"`
	CategoryKey  string  `json:"category_key"`
	ViewCount    int     `json:"view_count"`
	LikeCount    int     `json:"like_count"`
	CommentCount int     `json:"comment_count"`
	Status       string  `json:"status"`
	ImageCount   int     `json:"image_count"`
	HasImages    bool    `json:"has_images"`
}

// PostDetailView adds the full body, attachments and comment tree.
type PostDetailView struct {
	PostListView
	FullContent       string        `json:"full_content"`
	ContentLines      []string      `json:"content_lines"`
	Images            []PostImage   `json:"images"`
	ImageWebPaths     []string      `json:"image_web_paths"`
	ThumbnailWebPaths []string      `json:"thumbnail_web_paths"`
	Anonymous         bool          `json:"is_anonymous"`
	Sensitive         bool          `json:"is_sensitive"`
	UpdateTime        string        `json:"update_time"`
	Commentable       bool          `json:"commentable"`
	Editable          bool          `json:"editable"`
	Comments          []CommentView `json:"comments"`
}

// CommentView is a comment rendered with its replies.
type CommentView struct {
	ID           string        `json:"comment_id"`
	AuthorID     string        `json:"author_id"`
	ParentID     string        `json:"parent_id,omitempty"`
	Content      string        `json:"content"`
	CreatedAt    string        `json:"time"`
	RelativeTime string        `json:"relative_time,omitempty"`
	Replies      []CommentView `json:"replies"`
}

// SummaryLength is how many runes of the body the feed shows.
const SummaryLength = 50

// ListView flags the post as hot when its score exceeds hotThreshold.
func (p *Post) ListView(hotThreshold float64) PostListView {
	return PostListView{
		ID:           p.ID,
		Title:        p.Title,
		Author:       p.DisplayAuthor(),
		Summary:      p.ContentSummary(SummaryLength),
		PublishTime:  p.FormattedPublishTime(),
		HotScore:     p.CalculateHotScore(),
		IsHot:        p.IsHot(hotThreshold),
		Category:     p.CategoryDisplay(),
		CategoryKey:  string(p.Category),
		ViewCount:    p.ViewCount,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		Status:       p.Status.Name(),
		ImageCount:   len(p.Images),
		HasImages:    len(p.Images) > 0,
	}
}

func (p *Post) DetailView(hotThreshold float64) PostDetailView {
	comments := make([]CommentView, 0, len(p.CommentList))
	for _, c := range p.CommentList {
		comments = append(comments, c.View())
	}
	return PostDetailView{
		PostListView:      p.ListView(hotThreshold),
		FullContent:       p.Content,
		ContentLines:      p.ContentLines(),
		Images:            append([]PostImage{}, p.Images...),
		ImageWebPaths:     p.ImageWebPaths(),
		ThumbnailWebPaths: p.ThumbnailWebPaths(),
		Anonymous:         p.Anonymous,
		Sensitive:         p.Sensitive,
		UpdateTime:        p.FormattedUpdateTime(),
		Commentable:       p.IsCommentable(),
		Editable:          p.IsEditable(),
		Comments:          comments,
	}
}

func (c *Comment) View() CommentView {
	replies := make([]CommentView, 0, len(c.Replies))
	for _, r := range c.Replies {
		replies = append(replies, r.View())
	}
	return CommentView{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		CreatedAt: formatStamp(c.CreatedAt),
		Replies:   replies,
	}
}
