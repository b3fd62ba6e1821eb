// Package httpserver exposes the gateway's HTTP surface: the Guard
// middleware over the protected trees and the login/logout/account entry
// points. It signals with redirects and reason codes; page rendering is the
// embedding application's concern.
package httpserver

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"perimgate/internal/acl"
	"perimgate/internal/csrf"
	"perimgate/internal/epoch"
	"perimgate/internal/errs"
	"perimgate/internal/limiter"
	"perimgate/internal/model"
	"perimgate/internal/service"
	"perimgate/internal/token"
)

const (
	adminPath   = "/admin"
	accountPath = "/account"
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

// Options are the gateway knobs beyond its collaborators.
type Options struct {
	// Production gates ACL diagnostics; authorization failures answer 404.
	Production bool
	// GuardedPrefixes are the path trees the Guard state machine covers.
	GuardedPrefixes []string
	// CSRFTTL overrides the anti-forgery cookie lifetime (default csrf.TTL).
	CSRFTTL time.Duration
}

// Server wires the gateway components into HTTP handlers.
type Server struct {
	log             *zap.Logger
	auth            service.AuthService
	codec           *token.Codec
	epochs          epoch.Store
	lim             limiter.Limiter
	rules           *acl.RuleSet
	production      bool
	guardedPrefixes []string
	csrfTTL         time.Duration

	// delay masks timing differences between login failure modes
	delay func()
}

// New constructs the gateway server.
func New(log *zap.Logger, auth service.AuthService, codec *token.Codec, epochs epoch.Store, lim limiter.Limiter, rules *acl.RuleSet, opts Options) *Server {
	s := &Server{
		log:             log,
		auth:            auth,
		codec:           codec,
		epochs:          epochs,
		lim:             lim,
		rules:           rules,
		production:      opts.Production,
		guardedPrefixes: opts.GuardedPrefixes,
		csrfTTL:         opts.CSRFTTL,
	}
	if s.csrfTTL <= 0 {
		s.csrfTTL = csrf.TTL
	}
	s.delay = func() {
		time.Sleep(time.Duration(120+rand.IntN(201)) * time.Millisecond)
	}
	return s
}

// Handler returns the complete HTTP surface: the gateway's own entry points
// plus the guarded application handler for everything else.
func (s *Server) Handler(app http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(csrfPath, s.handleCSRF)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/auth/revoke-all", s.handleRevokeAll)
	mux.HandleFunc("/admin/users", s.handleAddUser)
	mux.HandleFunc("/account/password", s.handleChangePassword)
	mux.Handle("/", s.Guard(app))
	return Recover(s.log, Logging(s.log, mux))
}

// handleCSRF mints the anti-forgery cookie and bounces to the login page.
// The cookie is minted on demand and not rotated within its lifetime.
func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		seeOther(w, r, loginPath)
		return
	}
	tok, err := csrf.Mint()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	setCSRFCookie(w, tok, s.csrfTTL)
	loc := loginPath
	if reason := r.URL.Query().Get("err"); reason != "" {
		loc = withReason(loginPath, Reason(reason))
	}
	seeOther(w, r, loc)
}

// handleLogin runs the login pipeline: rate limit, origin, CSRF,
// credentials, mint. Every failure path takes a randomized delay and a
// generic reason code so callers cannot tell which check failed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		// convenience for a GET in a browser tab
		seeOther(w, r, loginPath)
		return
	}

	d, err := s.lim.Attempt(r.Context(), limiter.HashKey(clientIP(r)))
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.Error(err))
	} else if !d.Allowed {
		s.delay()
		http.Error(w, string(ReasonTooManyAttempts), http.StatusTooManyRequests)
		return
	}

	if !sameOrigin(r) {
		http.Error(w, string(ReasonForbidden), http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.fail(w, r, loginPath, ReasonNeedLogin)
		return
	}
	if !csrf.Check(cookieValue(r, csrfCookie), r.PostFormValue(csrfField)) {
		s.fail(w, r, loginPath, ReasonCSRF)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	signed, _, _, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			s.fail(w, r, loginPath, ReasonBadAuth)
			return
		}
		s.log.Error("login", zap.Error(err))
		s.fail(w, r, loginPath, ReasonNeedLogin)
		return
	}

	setSessionCookie(w, signed, s.codec.TTL())
	seeOther(w, r, landingPath)
}

// handleLogout clears the session cookie. The epoch is untouched: cookie
// absence alone blocks reuse from this client.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		seeOther(w, r, loginPath)
		return
	}
	clearSessionCookie(w)
	seeOther(w, r, csrfPath)
}

// handleRevokeAll bumps the caller's session epoch, invalidating every
// outstanding token for the subject, then clears the local cookie.
func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		seeOther(w, r, loginPath)
		return
	}
	res := s.authenticate(r)
	if !res.ok {
		seeOther(w, r, withReason(loginPath, ReasonNeedLogin))
		return
	}
	if !sameOrigin(r) {
		http.Error(w, string(ReasonForbidden), http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil || !csrf.Check(cookieValue(r, csrfCookie), r.PostFormValue(csrfField)) {
		seeOther(w, r, withReason(accountPath, ReasonCSRF))
		return
	}
	if _, err := s.auth.RevokeSessions(r.Context(), res.id.SubjectID); err != nil {
		s.log.Error("revoke sessions", zap.Error(err))
		seeOther(w, r, withReason(accountPath, "FAIL"))
		return
	}
	clearSessionCookie(w)
	seeOther(w, r, csrfPath)
}

// handleAddUser creates an account. Admin only; disabled entirely when the
// user store is read-only (production).
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		seeOther(w, r, loginPath)
		return
	}
	res := s.authenticate(r)
	if !res.ok {
		seeOther(w, r, withReason(loginPath, ReasonNeedLogin))
		return
	}
	if res.id.Role != model.RoleAdmin {
		http.Error(w, string(ReasonForbidden), http.StatusForbidden)
		return
	}
	if !sameOrigin(r) {
		http.Error(w, string(ReasonForbidden), http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil || !csrf.Check(cookieValue(r, csrfCookie), r.PostFormValue(csrfField)) {
		seeOther(w, r, withReason(adminPath, ReasonCSRF))
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	role := model.ParseRole(r.PostFormValue("role"))
	if !usernameRE.MatchString(username) {
		seeOther(w, r, withReason(adminPath, "BAD_USERNAME"))
		return
	}
	if len(password) < 8 {
		seeOther(w, r, withReason(adminPath, "WEAK_PASSWORD"))
		return
	}

	if _, err := s.auth.Register(r.Context(), username, password, role); err != nil {
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			seeOther(w, r, withReason(adminPath, "TAKEN"))
		case errors.Is(err, errs.ErrWriteDisabled):
			seeOther(w, r, withReason(adminPath, ReasonWriteDisabled))
		default:
			s.log.Error("add user", zap.Error(err))
			seeOther(w, r, withReason(adminPath, "FAIL"))
		}
		return
	}

	q := url.Values{"ok": {"1"}, "user": {username}}
	seeOther(w, r, adminPath+"?"+q.Encode())
}

// handleChangePassword verifies the current password and replaces it.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		seeOther(w, r, loginPath)
		return
	}
	res := s.authenticate(r)
	if !res.ok {
		seeOther(w, r, withReason(loginPath, ReasonNeedLogin))
		return
	}
	if !sameOrigin(r) {
		http.Error(w, string(ReasonForbidden), http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil || !csrf.Check(cookieValue(r, csrfCookie), r.PostFormValue(csrfField)) {
		seeOther(w, r, withReason(accountPath, ReasonCSRF))
		return
	}

	current := r.PostFormValue("current")
	next := r.PostFormValue("next")
	confirm := r.PostFormValue("confirm")
	if next != confirm {
		seeOther(w, r, withReason(accountPath, "MISMATCH"))
		return
	}
	if len(next) < 8 {
		seeOther(w, r, withReason(accountPath, "WEAK"))
		return
	}

	if err := s.auth.ChangePassword(r.Context(), res.id.SubjectID, current, next); err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			seeOther(w, r, withReason(accountPath, "BAD_CURRENT"))
		case errors.Is(err, errs.ErrWriteDisabled):
			seeOther(w, r, withReason(accountPath, ReasonWriteDisabled))
		default:
			s.log.Error("change password", zap.Error(err))
			seeOther(w, r, withReason(accountPath, "FAIL"))
		}
		return
	}

	seeOther(w, r, accountPath+"?ok=1")
}

// fail applies the randomized delay before redirecting with a reason code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, path string, reason Reason) {
	s.delay()
	seeOther(w, r, withReason(path, reason))
}
