package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/campusbbs/config"
	"github.com/cppla/campusbbs/controllers"
	"github.com/cppla/campusbbs/middleware"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// Deps are the long-lived services the HTTP layer is built on.
type Deps struct {
	Forum     *services.Forum
	Cache     *utils.ResponseCache
	Issuer    *utils.TokenIssuer
	Blacklist *utils.TokenBlacklist
	Guard     *utils.RegisterGuard
	// Captcha is consulted only when cfg.RegisterCaptchaEnabled is set.
	Captcha *utils.Captcha
	Logger  *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	auth := middleware.NewAuth(deps.Issuer, deps.Blacklist, deps.Forum)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	var captcha *utils.Captcha
	if cfg.RegisterCaptchaEnabled {
		captcha = deps.Captcha
		if captcha == nil {
			captcha = utils.NewCaptcha(utils.NewCaptchaStore(nil, time.Duration(cfg.CaptchaTTLSeconds)*time.Second))
		}
	}
	authController := controllers.NewAuthController(deps.Forum, deps.Cache, deps.Issuer, deps.Blacklist, deps.Guard, captcha, deps.Logger)
	postController := controllers.NewPostController(deps.Forum, deps.Cache)
	userController := controllers.NewUserController(deps.Forum, deps.Cache)
	statsController := controllers.NewStatsController(deps.Forum)

	r.GET("/health", statsController.Health)

	api := r.Group("/api/v1")
	api.GET("/health", statsController.Health)
	api.GET("/categories", statsController.Categories)
	api.GET("/stats", statsController.GetStats)

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/send-code", authController.SendCode)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", auth.Required(), authController.Logout)
	authGroup.GET("/me", auth.Required(), authController.Me)
	authGroup.PATCH("/profile", auth.Required(), authController.UpdateProfile)
	authGroup.POST("/password", auth.Required(), authController.ChangePassword)

	// Public reads; a valid token lets authors and admins see their hidden posts.
	public := api.Group("")
	public.Use(auth.Optional())
	public.GET("/posts", postController.ListPosts)
	public.GET("/posts/hot", postController.HotPosts)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/users/:id", userController.GetUser)
	public.GET("/users/:id/posts", userController.ListUserPosts)

	protected := api.Group("")
	protected.Use(auth.Required(), limiter.Middleware())
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/publish", postController.PublishPost)
	protected.POST("/posts/:id/restore", postController.RestorePost)
	protected.POST("/posts/:id/status", postController.SetStatus)
	protected.POST("/posts/:id/like", postController.LikePost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.POST("/posts/:id/comments/:commentId/replies", postController.ReplyComment)
	protected.GET("/users/me/notifications", userController.Notifications)
	protected.POST("/reports", userController.CreateReport)
	protected.GET("/reports", userController.ListReports)
	protected.POST("/users/:id/ban", userController.BanUser)
	protected.DELETE("/users/:id/ban", userController.UnbanUser)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
