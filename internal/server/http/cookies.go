package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/and161185/tenant-notes/internal/model"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

func sameSite(p model.CookiePolicy) http.SameSite {
	switch strings.ToLower(p.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func cookie(name, value string, p model.CookiePolicy, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: sameSite(p),
		MaxAge:   maxAge,
	}
}

func setAuthCookies(w http.ResponseWriter, t model.Tokens) {
	now := time.Now()
	http.SetCookie(w, cookie(accessCookie, t.AccessToken, t.Cookie, int(t.AccessExpiresAt.Sub(now).Seconds())))
	http.SetCookie(w, cookie(refreshCookie, t.RefreshToken, t.Cookie, int(t.RefreshExpiresAt.Sub(now).Seconds())))
}

// clearAuthCookies expires both cookies with the same flags they were set with.
func clearAuthCookies(w http.ResponseWriter, p model.CookiePolicy) {
	http.SetCookie(w, cookie(accessCookie, "", p, -1))
	http.SetCookie(w, cookie(refreshCookie, "", p, -1))
}
