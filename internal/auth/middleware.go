package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aura/internal/logging"
)

const (
	CtxClaimsKey      = "auth_claims"
	SessionCookieName = "aura_session"
)

// Middleware authenticates with a bearer token or, failing that, the session
// cookie set at login. The token version is checked against the database
// when repo is non-nil.
func Middleware(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		if repo != nil {
			current, err := repo.GetTokenVersion(c.Request.Context(), claims.UserID)
			if err != nil || current != claims.TokenVersion {
				if err != nil {
					logging.Ctx(c.Request.Context()).Debug().Err(err).Str("user_id", claims.UserID).Msg("token version lookup failed")
				}
				abortUnauthorized(c, "invalid token")
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if ck, err := c.Cookie(SessionCookieName); err == nil {
		return ck
	}
	return ""
}

// ajax callers expect the {success,error} envelope
func abortUnauthorized(c *gin.Context, msg string) {
	if strings.HasPrefix(c.Request.URL.Path, "/ajax/") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// UserID returns the authenticated user's id or "".
func UserID(c *gin.Context) string {
	if cl := MustGetClaims(c); cl != nil {
		return cl.UserID
	}
	return ""
}
