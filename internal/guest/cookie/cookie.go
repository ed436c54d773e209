// Package cookie reads and writes the long-lived guest identity cookie.
package cookie

import (
	"net/http"

	"marketplace_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Jar issues the guest cookie with the configured attributes.
type Jar struct {
	cfg config.GuestConfig
}

// New creates a guest cookie jar.
func New(cfg config.GuestConfig) *Jar {
	return &Jar{cfg: cfg}
}

// Name returns the cookie name.
func (j *Jar) Name() string {
	return j.cfg.GetGuestCookieName()
}

// Read returns the guest token carried by the request, or "".
func (j *Jar) Read(c *gin.Context) string {
	value, err := c.Cookie(j.cfg.GetGuestCookieName())
	if err != nil {
		return ""
	}
	return value
}

// Set issues the cookie: httpOnly, SameSite per config, long max-age.
func (j *Jar) Set(c *gin.Context, token string) {
	j.write(c, token, int(j.cfg.GetGuestCookieMaxAge().Seconds()))
}

// Clear expires the cookie.
func (j *Jar) Clear(c *gin.Context) {
	j.write(c, "", -1)
}

func (j *Jar) write(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     j.cfg.GetGuestCookieName(),
		Value:    value,
		Path:     "/",
		Domain:   j.cfg.GetGuestCookieDomain(),
		MaxAge:   maxAge,
		Secure:   j.cfg.GetGuestCookieSecure(),
		HttpOnly: true,
		SameSite: j.cfg.GetGuestCookieSameSite(),
	})
}
