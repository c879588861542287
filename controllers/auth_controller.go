package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/campusbbs/middleware"
	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/utils"
)

// AuthController handles registration, login and the caller's own account.
type AuthController struct {
	writes
	issuer    *utils.TokenIssuer
	blacklist *utils.TokenBlacklist
	guard     *utils.RegisterGuard
	captcha   *utils.Captcha
	logger    *zap.Logger
}

// NewAuthController creates a new AuthController instance. A nil captcha
// disables the captcha check.
func NewAuthController(forum *services.Forum, cache *utils.ResponseCache, issuer *utils.TokenIssuer, blacklist *utils.TokenBlacklist, guard *utils.RegisterGuard, captcha *utils.Captcha, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{
		writes:    writes{forum: forum, cache: cache},
		issuer:    issuer,
		blacklist: blacklist,
		guard:     guard,
		captcha:   captcha,
		logger:    logger,
	}
}

// Captcha returns a fresh captcha id and its image as a data URI.
func (a *AuthController) Captcha(ctx *gin.Context) {
	if a.captcha == nil {
		utils.Error(ctx, http.StatusNotFound, 40400, "captcha is disabled")
		return
	}
	id, img, err := a.captcha.Generate()
	if err != nil {
		a.logger.Error("generate captcha", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50060, "生成验证码失败")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "captcha_image": img})
}

// SendCode mails a registration code to a campus address. When captcha is
// enabled it must be solved first.
func (a *AuthController) SendCode(ctx *gin.Context) {
	var req struct {
		Email         string `json:"email" binding:"required"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if a.captcha != nil && !a.captcha.Verify(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40042, "验证码错误或已过期")
		return
	}
	if err := a.forum.SendCode(ctx.Request.Context(), req.Email); err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "验证码已发送"})
}

// Register creates an account and signs it in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req services.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if !a.guard.Allow(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "注册过于频繁，请稍后再试")
		return
	}

	profile, err := a.forum.Register(req)
	if err != nil {
		fail(ctx, err)
		return
	}
	a.guard.RecordSuccess(ip)
	a.changed()

	a.respondWithToken(ctx, profile)
}

// Login authenticates with student id and password.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Password  string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	profile, err := a.forum.Login(middleware.SessionFrom(ctx), strings.TrimSpace(req.StudentID), req.Password)
	if err != nil {
		fail(ctx, err)
		return
	}
	a.respondWithToken(ctx, profile)
}

// Logout revokes the bearer token until it would have expired anyway.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, claims, ok := middleware.TokenFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	a.blacklist.Revoke(token, expiresAt)
	a.forum.Logout(middleware.SessionFrom(ctx))
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	profile, err := a.forum.Me(middleware.SessionFrom(ctx))
	if err != nil {
		fail(ctx, err)
		return
	}
	utils.Success(ctx, profile)
}

func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req services.ProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	req.Nickname = utils.SanitizeText(strings.TrimSpace(req.Nickname))
	profile, err := a.forum.UpdateProfile(middleware.SessionFrom(ctx), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	a.changed()
	utils.Success(ctx, profile)
}

func (a *AuthController) ChangePassword(ctx *gin.Context) {
	var req services.PasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if err := a.forum.ChangePassword(middleware.SessionFrom(ctx), req); err != nil {
		fail(ctx, err)
		return
	}
	a.forum.SaveAsync(nil)
	utils.Success(ctx, gin.H{"message": "密码已修改"})
}

func (a *AuthController) respondWithToken(ctx *gin.Context, profile models.Profile) {
	token, expiresAt, err := a.issuer.GenerateToken(profile.ID, profile.StudentID)
	if err != nil {
		a.logger.Error("issue token", zap.String("user_id", profile.ID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       profile,
	})
}
