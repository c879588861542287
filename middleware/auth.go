package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/session"
	"github.com/cppla/campusbbs/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextSessionKey stores the request scoped *session.Session.
	ContextSessionKey = "session"
	// ContextTokenKey and ContextClaimsKey keep the raw bearer token and its claims for logout.
	ContextTokenKey  = "token"
	ContextClaimsKey = "claims"
)

// Authenticator resolves the subject of a valid token.
type Authenticator interface {
	Authenticate(userID string) (*models.User, error)
}

// Auth validates bearer tokens and binds the account to a per-request session.
type Auth struct {
	issuer    *utils.TokenIssuer
	blacklist *utils.TokenBlacklist
	users     Authenticator
}

func NewAuth(issuer *utils.TokenIssuer, blacklist *utils.TokenBlacklist, users Authenticator) *Auth {
	return &Auth{issuer: issuer, blacklist: blacklist, users: users}
}

// Required ensures the request is authenticated via JWT.
func (a *Auth) Required() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}
		status, code, msg := a.attach(ctx, authHeader)
		if status != 0 {
			utils.Error(ctx, status, code, msg)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// Optional attaches the account when a valid token is present and otherwise
// lets the request through with an empty session.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if h := ctx.GetHeader("Authorization"); h != "" {
			if status, _, _ := a.attach(ctx, h); status != 0 {
				ctx.Set(ContextSessionKey, session.New())
			}
		}
		ctx.Next()
	}
}

func (a *Auth) attach(ctx *gin.Context, authHeader string) (int, int, string) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return http.StatusUnauthorized, 40102, "invalid authorization header format"
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return http.StatusUnauthorized, 40103, "empty bearer token"
	}
	if a.blacklist.IsRevoked(tokenString) {
		return http.StatusUnauthorized, 40104, "token revoked"
	}
	claims, err := a.issuer.ParseToken(tokenString)
	if err != nil {
		return http.StatusUnauthorized, 40105, "invalid token"
	}
	u, err := a.users.Authenticate(claims.UserID)
	if errors.Is(err, services.ErrForbidden) {
		return http.StatusForbidden, 40301, "account banned"
	}
	if err != nil {
		return http.StatusUnauthorized, 40106, "account not found"
	}

	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextTokenKey, tokenString)
	ctx.Set(ContextClaimsKey, claims)
	ctx.Set(ContextSessionKey, session.For(u))
	return 0, 0, ""
}

// SessionFrom returns the request session, or an empty one for anonymous readers.
func SessionFrom(ctx *gin.Context) *session.Session {
	if v, ok := ctx.Get(ContextSessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return session.New()
}

// TokenFrom returns the bearer token and claims stored by Required.
func TokenFrom(ctx *gin.Context) (string, *utils.Claims, bool) {
	tok, ok := ctx.Get(ContextTokenKey)
	if !ok {
		return "", nil, false
	}
	cl, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return "", nil, false
	}
	s, _ := tok.(string)
	c, _ := cl.(*utils.Claims)
	return s, c, s != "" && c != nil
}
