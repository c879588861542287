package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/campusbbs/middleware"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// PostController manages posts and their comment threads.
type PostController struct {
	writes
}

// NewPostController creates a new PostController instance.
func NewPostController(forum *services.Forum, cache *utils.ResponseCache) *PostController {
	return &PostController{writes: writes{forum: forum, cache: cache}}
}

// ListPosts returns a page of the public feed. Plain listings are served from
// the response cache when one is configured; searches always hit the forum.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	q := services.FeedQuery{
		Sort:     strings.TrimSpace(ctx.Query("sort")),
		Category: strings.TrimSpace(ctx.Query("category")),
		Keyword:  strings.TrimSpace(ctx.Query("search")),
		SearchIn: strings.TrimSpace(ctx.Query("search_in")),
		Page:     page,
		PageSize: pageSize,
	}

	cacheKey := ""
	if q.Keyword == "" {
		cacheKey = fmt.Sprintf("%ssort=%s:cat=%s:p=%d:s=%d", feedCachePrefix, q.Sort, q.Category, q.Page, q.PageSize)
		if b, ok := p.cache.GetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	feed, err := p.forum.Feed(q)
	if err != nil {
		fail(ctx, err)
		return
	}
	data := gin.H{
		"list":       feed.Posts,
		"pagination": utils.NewPagination(feed.Page, feed.PageSize, feed.Total),
	}
	if cacheKey != "" {
		p.cache.SetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: data})
	}
	utils.Success(ctx, data)
}

// HotPosts lists published posts above the hot threshold.
func (p *PostController) HotPosts(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}
	utils.Success(ctx, gin.H{"list": p.forum.HotPosts(limit)})
}

// GetPost returns a post with its comment tree and counts the view.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.forum.ViewPost(middleware.SessionFrom(ctx), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, post)
}

// CreatePost stores a draft, or publishes it straight away when asked.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req services.CreatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	req.Title = utils.SanitizeText(strings.TrimSpace(req.Title))
	req.Content = utils.Sanitize(req.Content)

	post, err := p.forum.CreatePost(middleware.SessionFrom(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Respond(ctx, http.StatusCreated, 0, "success", post)
}

func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req services.UpdatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	req.Title = utils.SanitizeText(strings.TrimSpace(req.Title))
	req.Content = utils.Sanitize(req.Content)

	post, err := p.forum.UpdatePost(middleware.SessionFrom(ctx), id, req)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, post)
}

func (p *PostController) PublishPost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Anonymous bool `json:"is_anonymous"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
			return
		}
	}
	post, err := p.forum.PublishPost(middleware.SessionFrom(ctx), id, req.Anonymous)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, post)
}

// DeletePost soft-deletes for the author and force-deletes for admins.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := p.forum.DeletePost(middleware.SessionFrom(ctx), id); err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, gin.H{"message": "deleted"})
}

func (p *PostController) RestorePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.forum.RestorePost(middleware.SessionFrom(ctx), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, post)
}

// SetStatus moves a post through the status machine. Admin only.
func (p *PostController) SetStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	post, err := p.forum.TransitionPost(middleware.SessionFrom(ctx), id, req.Status)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, post)
}

func (p *PostController) LikePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	likes, err := p.forum.LikePost(middleware.SessionFrom(ctx), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Success(ctx, gin.H{"like_count": likes})
}

// CreateComment adds a top level comment.
func (p *PostController) CreateComment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	content, ok := bindComment(ctx)
	if !ok {
		return
	}
	comment, err := p.forum.AddComment(middleware.SessionFrom(ctx), id, content)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Respond(ctx, http.StatusCreated, 0, "success", comment)
}

// ReplyComment answers an existing comment.
func (p *PostController) ReplyComment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(ctx, "commentId")
	if !ok {
		return
	}
	content, ok := bindComment(ctx)
	if !ok {
		return
	}
	reply, err := p.forum.ReplyComment(middleware.SessionFrom(ctx), id, commentID, content)
	if err != nil {
		fail(ctx, err)
		return
	}
	p.changed()
	utils.Respond(ctx, http.StatusCreated, 0, "success", reply)
}

func bindComment(ctx *gin.Context) (string, bool) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return "", false
	}
	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content cannot be empty")
		return "", false
	}
	return content, true
}
