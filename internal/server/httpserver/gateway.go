package httpserver

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"perimgate/internal/limiter"
	"perimgate/internal/model"
	"perimgate/internal/token"
)

// Reason codes surfaced to clients. Stable and safe to show.
type Reason string

const (
	ReasonNeedLogin       Reason = "NEED_LOGIN"
	ReasonCSRF            Reason = "CSRF"
	ReasonBadAuth         Reason = "BAD_AUTH"
	ReasonNoAccess        Reason = "NO_ACCESS"
	ReasonTooManyAttempts Reason = "TOO_MANY_ATTEMPTS"
	ReasonForbidden       Reason = "FORBIDDEN"
	ReasonWriteDisabled   Reason = "WRITE_DISABLED"
)

// authResult is the outcome of token verification plus the epoch check:
// either an authenticated identity or a rejection reason. Control flow
// through the gateway never panics or throws.
type authResult struct {
	id     model.Identity
	claims token.Claims
	reject Reason
	ok     bool
}

// authenticate runs AUTH_CHECK and EPOCH_CHECK for a request. Every failure
// collapses to NEED_LOGIN for the client; the internal distinction between a
// bad token and a stale epoch is kept for diagnostics only.
func (s *Server) authenticate(r *http.Request) authResult {
	raw := cookieValue(r, sessionCookie)
	id, claims, err := s.codec.Verify(raw)
	if err != nil {
		return authResult{reject: ReasonNeedLogin}
	}

	cur, err := s.epochs.Current(r.Context(), id.SubjectID)
	if err != nil {
		// Documented tradeoff: an epoch store outage degrades to accepting
		// the token (signature and expiry already passed) instead of
		// failing every request.
		s.log.Warn("epoch store unavailable, skipping epoch check", zap.Error(err))
		return authResult{id: id, claims: claims, ok: true}
	}
	if claims.Epoch != cur {
		s.log.Debug("stale session epoch",
			zap.String("subject", id.SubjectID),
			zap.Int64("token", claims.Epoch),
			zap.Int64("current", cur),
		)
		return authResult{reject: ReasonNeedLogin}
	}
	return authResult{id: id, claims: claims, ok: true}
}

// Guard is the per-request state machine over the guarded path trees:
// RATE_CHECK, AUTH_CHECK, EPOCH_CHECK, ACL_CHECK, HEADER_INJECT, then
// pass-through with the identity in the request context. Paths outside
// every guarded tree pass straight through.
func (s *Server) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.guarded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// RATE_CHECK
		d, err := s.lim.Attempt(r.Context(), limiter.HashKey(clientIP(r)))
		if err != nil {
			// limiter outage admits the request
			s.log.Warn("rate limiter unavailable", zap.Error(err))
		} else if !d.Allowed {
			http.Error(w, string(ReasonTooManyAttempts), http.StatusTooManyRequests)
			return
		}

		// AUTH_CHECK + EPOCH_CHECK
		res := s.authenticate(r)
		if !res.ok {
			seeOther(w, r, withReason(csrfPath, res.reject))
			return
		}

		// ACL_CHECK
		if !s.rules.Allowed(res.id, r.URL.Path) {
			s.denyACL(w, r, res.id)
			return
		}

		// HEADER_INJECT
		h := w.Header()
		h.Set("Cache-Control", "private, no-store")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.id)))
	})
}

// denyACL responds to an evaluator deny. Production answers as if the
// resource does not exist; development redirects to the neutral landing page
// with non-sensitive crumbs about the matched rule (prefix, role list,
// whitelist counts — never raw identity lists).
func (s *Server) denyACL(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if s.production {
		http.NotFound(w, r)
		return
	}

	q := url.Values{}
	q.Set("err", string(ReasonNoAccess))
	q.Set("path", r.URL.Path)
	if rule, ok := s.rules.Match(r.URL.Path); ok {
		q.Set("rp", rule.PathPrefix)
		if len(rule.Roles) > 0 {
			q.Set("rr", strings.Join(rule.Roles, ","))
		}
		if n := len(rule.SubjectIDs); n > 0 {
			q.Set("rid", strconv.Itoa(n))
		}
		if n := len(rule.Usernames); n > 0 {
			q.Set("rn", strconv.Itoa(n))
		}
	}
	q.Set("me", id.Username+"#"+id.SubjectID)
	q.Set("role", string(id.Role))
	seeOther(w, r, landingPath+"?"+q.Encode())
}

func (s *Server) guarded(path string) bool {
	for _, p := range s.guardedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
