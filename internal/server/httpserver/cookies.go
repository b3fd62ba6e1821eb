package httpserver

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Cookie names. The __Host- prefix pins cookies to this host over HTTPS with
// Path=/ and no Domain attribute.
const (
	sessionCookie = "__Host-session"
	csrfCookie    = "__Host-csrf"
)

// Well-known paths. Rendering these pages is the embedding application's
// concern; the gateway only redirects to them with a reason code.
const (
	loginPath   = "/login"
	landingPath = "/protected"
	csrfPath    = "/auth/csrf"
)

// csrfField is the hidden form field carrying the double-submit token.
const csrfField = "csrf"

// seeOther redirects with 303 so a mutating request is never replayed on
// back/refresh.
func seeOther(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// withReason appends an err=<code> query parameter to a path.
func withReason(path string, reason Reason) string {
	v := url.Values{"err": {string(reason)}}
	return path + "?" + v.Encode()
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setCSRFCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// clientIP extracts the originating address: first X-Forwarded-For entry if
// present, else the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sameOrigin verifies the Origin header against the request host for
// mutating submissions. A missing Origin is tolerated (non-browser
// clients); a mismatched one is not.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
