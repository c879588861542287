package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// feedCachePrefix namespaces cached feed pages; every write drops the whole prefix.
const feedCachePrefix = "cache:posts:list:"

// fail maps service errors onto the JSON envelope.
func fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40020, err.Error())
	case errors.Is(err, services.ErrInvalidCode):
		utils.Error(ctx, http.StatusBadRequest, 40030, "验证码错误或已过期")
	case errors.Is(err, services.ErrUnauthorized):
		utils.Error(ctx, http.StatusUnauthorized, 40110, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40310, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "not found")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40910, err.Error())
	case errors.Is(err, services.ErrDelivery):
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "邮件发送失败，请稍后再试")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50001, "internal server error")
	}
}

// parsePagination reads page and page_size. A missing or out of range size
// yields 0 so the forum applies its configured default.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 0
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pathID(ctx *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(ctx.Param(name))
	if id == "" {
		utils.Error(ctx, http.StatusBadRequest, 40050, "missing "+name)
		return "", false
	}
	return id, true
}

// writes is embedded by controllers that mutate forum state.
type writes struct {
	forum *services.Forum
	cache *utils.ResponseCache
}

// changed drops cached feed pages and schedules a save.
func (w writes) changed() {
	w.cache.InvalidateByPrefix(feedCachePrefix)
	w.forum.SaveAsync(nil)
}
