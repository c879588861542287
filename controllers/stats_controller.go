package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// StatsController serves forum counters and static metadata.
type StatsController struct {
	forum   *services.Forum
	started time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(forum *services.Forum) *StatsController {
	return &StatsController{forum: forum, started: time.Now()}
}

// GetStats returns aggregate statistics for the forum.
func (s *StatsController) GetStats(ctx *gin.Context) {
	utils.Success(ctx, s.forum.Stats())
}

// Categories lists every board with its display name, ordered by weight.
func (s *StatsController) Categories(ctx *gin.Context) {
	list := make([]gin.H, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		list = append(list, gin.H{
			"key":      string(c),
			"name":     c.DisplayName(),
			"icon":     c.Icon(),
			"display":  c.DisplayText(),
			"postable": c.IsUserPostable(),
		})
	}
	utils.Success(ctx, gin.H{"list": list})
}

func (s *StatsController) Health(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}
