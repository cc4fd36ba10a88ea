package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// CookiePolicy controls the refresh-token cookie attributes. In production
// the cookie is Secure and SameSite=Strict, otherwise SameSite=Lax.
type CookiePolicy struct {
	Production bool
	MaxAge     time.Duration
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.Production {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (p CookiePolicy) setRefreshCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: p.sameSite(),
	})
}

func (p CookiePolicy) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: p.sameSite(),
	})
}

// noStore marks a token-bearing response as uncacheable.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
