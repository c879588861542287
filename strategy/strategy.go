// Package strategy holds the interchangeable orderings and filters used by the feed.
package strategy

import (
	"sort"
	"strings"

	"github.com/cppla/campusbbs/models"
)

// Sorter reorders posts in place.
type Sorter interface {
	Sort(posts []*models.Post)
}

// Searcher selects the posts matching keyword. Implementations return src
// itself for a blank keyword.
type Searcher interface {
	Search(src []*models.Post, keyword string) []*models.Post
}

// ByTime puts the most recently published post first. Posts without a publish
// time go last. Equal times keep their relative order.
type ByTime struct{}

func (ByTime) Sort(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishTime, posts[j].PublishTime
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}

// ByHotness orders by descending hot score. Ties keep their relative order.
type ByHotness struct{}

func (ByHotness) Sort(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CalculateHotScore() > posts[j].CalculateHotScore()
	})
}

// SorterByName maps the feed's "sort" parameter. Unknown names fall back to time.
func SorterByName(name string) Sorter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hot", "hotness":
		return ByHotness{}
	default:
		return ByTime{}
	}
}

// TitleKeyword matches the keyword case-insensitively against titles.
type TitleKeyword struct{}

func (TitleKeyword) Search(src []*models.Post, keyword string) []*models.Post {
	return match(src, keyword, func(p *models.Post) []string { return []string{p.Title} })
}

// ContentKeyword matches titles and bodies.
type ContentKeyword struct{}

func (ContentKeyword) Search(src []*models.Post, keyword string) []*models.Post {
	return match(src, keyword, func(p *models.Post) []string { return []string{p.Title, p.Content} })
}

func match(src []*models.Post, keyword string, fields func(*models.Post) []string) []*models.Post {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return src
	}
	out := make([]*models.Post, 0, len(src))
	for _, p := range src {
		for _, f := range fields(p) {
			if strings.Contains(strings.ToLower(f), kw) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Filter keeps the posts for which keep returns true.
func Filter(src []*models.Post, keep func(*models.Post) bool) []*models.Post {
	out := make([]*models.Post, 0, len(src))
	for _, p := range src {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// InCategory keeps posts of category c.
func InCategory(c models.PostCategory) func(*models.Post) bool {
	return func(p *models.Post) bool { return p.Category == c }
}

// HotterThan keeps posts whose score exceeds threshold.
func HotterThan(threshold float64) func(*models.Post) bool {
	return func(p *models.Post) bool { return p.CalculateHotScore() > threshold }
}

// Visible keeps posts a reader may see.
func Visible(p *models.Post) bool { return p.IsVisible() }
