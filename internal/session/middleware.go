package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireSession rejects requests without a valid access token and stores
// the resolved session in the request context.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			utilities.WriteError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		s, err := g.Resolve(r.Context(), tok)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				g.logger.Errorw("resolve session failed", "err", err)
			}
			utilities.WriteError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireCompleteProfile sends principals with a missing or placeholder
// profile to the completion flow. It expects RequireSession to run first.
func RequireCompleteProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		switch s.State {
		case StatePatronHome, StateAdminHome:
			next.ServeHTTP(w, r)
		case StateUnauthenticated:
			utilities.WriteError(w, http.StatusUnauthorized, "sign in required")
		default:
			utilities.WriteJSON(w, http.StatusForbidden, map[string]string{
				"error":   "profile incomplete",
				"landing": Landing(StateProfileIncomplete),
			})
		}
	})
}

// RequireAdmin lets only administrators with a complete profile through.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireCompleteProfile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).State != StateAdminHome {
			utilities.WriteError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
