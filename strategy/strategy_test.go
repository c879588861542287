package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/campusbbs/models"
)

var base = time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

func post(title string, published time.Time) *models.Post {
	p := models.NewPost(title, "body", "a", models.CategoryQnA)
	p.PublishTime = published
	return p
}

func ids(posts []*models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestByTime_StableDescending(t *testing.T) {
	posts := []*models.Post{
		post("a", base.Add(-2*time.Hour)),
		post("b", base.Add(-time.Hour)),
		post("c", base.Add(-2*time.Hour)),
	}
	ByTime{}.Sort(posts)
	assert.Equal(t, []string{"b", "a", "c"}, ids(posts))
}

func TestByTime_ZeroTimesLast(t *testing.T) {
	posts := []*models.Post{
		post("none1", time.Time{}),
		post("old", base.Add(-time.Hour)),
		post("none2", time.Time{}),
		post("new", base),
	}
	ByTime{}.Sort(posts)
	assert.Equal(t, []string{"new", "old", "none1", "none2"}, ids(posts))
}

func TestByHotness(t *testing.T) {
	cold := post("cold", base)
	warm := post("warm", base)
	warm.LikeCount = 5
	tie := post("tie", base)
	tie.LikeCount = 5
	hot := post("hot", base)
	hot.ViewCount, hot.LikeCount, hot.CommentCount = 100, 50, 30

	posts := []*models.Post{cold, warm, hot, tie}
	ByHotness{}.Sort(posts)
	assert.Equal(t, []string{"hot", "warm", "tie", "cold"}, ids(posts))
}

func TestSorterByName(t *testing.T) {
	assert.IsType(t, ByHotness{}, SorterByName("HOT"))
	assert.IsType(t, ByTime{}, SorterByName("time"))
	assert.IsType(t, ByTime{}, SorterByName(""))
}

func TestTitleKeyword(t *testing.T) {
	posts := []*models.Post{
		post("Java Basics", base),
		post("Go tour", base),
		post("ADVANCED JAVA", base),
	}

	got := TitleKeyword{}.Search(posts, "java")
	assert.Equal(t, []string{"Java Basics", "ADVANCED JAVA"}, ids(got))

	all := TitleKeyword{}.Search(posts, "   ")
	require.Len(t, all, 3)
	assert.Same(t, &posts[0], &all[0])

	assert.Empty(t, TitleKeyword{}.Search(posts, "rust"))
}

func TestContentKeyword(t *testing.T) {
	p := post("Title", base)
	p.Content = "我们用 Golang 写服务"
	got := ContentKeyword{}.Search([]*models.Post{p, post("other", base)}, "golang")
	assert.Equal(t, []string{"Title"}, ids(got))
}

func TestFilters(t *testing.T) {
	a := post("a", base)
	b := post("b", base)
	b.Category = models.CategoryActivity
	b.ViewCount = 100
	b.Publish()

	assert.Equal(t, []string{"b"}, ids(Filter([]*models.Post{a, b}, InCategory(models.CategoryActivity))))
	assert.Equal(t, []string{"b"}, ids(Filter([]*models.Post{a, b}, HotterThan(20))))
	assert.Equal(t, []string{"b"}, ids(Filter([]*models.Post{a, b}, Visible)))
}
