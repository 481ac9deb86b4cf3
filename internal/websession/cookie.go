package websession

import (
	"net/http"
	"time"
)

// CookieName is the name of the cookie carrying the local session id.
const CookieName = "oidc_info_session"

// CookieOptions defines how session cookies are issued. Cookies are HttpOnly
// unless ScriptAccess is set.
type CookieOptions struct {
	Path         string
	Domain       string
	ScriptAccess bool
	Secure       bool
	SameSite     http.SameSite
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// SetCookie issues the session cookie to the client.
func SetCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time, opts CookieOptions) {
	opts = opts.normalize()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: !opts.ScriptAccess,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: !opts.ScriptAccess,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// cookieValue returns the session id carried by r, if any.
func cookieValue(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
