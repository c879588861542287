package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/campusbbs/middleware"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// UserController serves public profiles, notifications and moderation.
type UserController struct {
	writes
}

// NewUserController creates a new UserController instance.
func NewUserController(forum *services.Forum, cache *utils.ResponseCache) *UserController {
	return &UserController{writes: writes{forum: forum, cache: cache}}
}

// GetUser returns a public profile.
func (u *UserController) GetUser(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	profile, err := u.forum.Profile(id)
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, profile)
}

// ListUserPosts lists a user's posts. The owner sees drafts and anonymous
// posts too.
func (u *UserController) ListUserPosts(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	posts, err := u.forum.UserPosts(middleware.SessionFrom(ctx), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"list": posts, "total": len(posts)})
}

func (u *UserController) Notifications(ctx *gin.Context) {
	list, err := u.forum.Notifications(middleware.SessionFrom(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"list": list, "total": len(list)})
}

// CreateReport files a report against a user or a post.
func (u *UserController) CreateReport(ctx *gin.Context) {
	var req struct {
		TargetID string `json:"target_id" binding:"required"`
		Reason   string `json:"reason" binding:"required,max=500"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	report, err := u.forum.ReportUser(middleware.SessionFrom(ctx), strings.TrimSpace(req.TargetID), utils.SanitizeText(req.Reason))
	if err != nil {
		fail(ctx, err)
		return
	}
	u.forum.SaveAsync(nil)
	utils.Respond(ctx, http.StatusCreated, 0, "success", report)
}

// ListReports is the admin review queue.
func (u *UserController) ListReports(ctx *gin.Context) {
	reports, err := u.forum.ReviewReports(middleware.SessionFrom(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"list": reports, "total": len(reports)})
}

// BanUser bans for the given number of days; zero or less is permanent.
func (u *UserController) BanUser(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Days int `json:"days"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	profile, err := u.forum.BanUser(middleware.SessionFrom(ctx), id, req.Days)
	if err != nil {
		fail(ctx, err)
		return
	}
	u.changed()
	utils.Success(ctx, profile)
}

func (u *UserController) UnbanUser(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := u.forum.UnbanUser(middleware.SessionFrom(ctx), id); err != nil {
		fail(ctx, err)
		return
	}
	u.changed()
	utils.Success(ctx, gin.H{"message": "unbanned"})
}
