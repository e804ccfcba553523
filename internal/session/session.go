// Package session tracks the signed-in principal and its person record, and
// gates routes on the principal's state.
package session

import (
	"context"

	personentity "github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
)

// State is the position of a principal in the sign-in flow.
type State string

const (
	StateUnauthenticated   State = "unauthenticated"
	StatePending           State = "pending"
	StateProfileIncomplete State = "profile_incomplete"
	StatePatronHome        State = "patron_home"
	StateAdminHome         State = "admin_home"
)

// Session is the resolved principal for one request.
type Session struct {
	AccountID string               `json:"account_id,omitempty"`
	Email     string               `json:"email,omitempty"`
	Version   int64                `json:"-"`
	Profile   *personentity.Person `json:"profile,omitempty"`
	State     State                `json:"state"`
}

// IsAdmin reports whether the principal holds the administrator role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Profile != nil && s.Profile.IsAdmin
}

// StateFor derives the state of an authenticated principal from its person record.
// A nil record means provisioning has not finished.
func StateFor(p *personentity.Person) State {
	switch {
	case p == nil:
		return StatePending
	case !p.IsComplete():
		return StateProfileIncomplete
	case p.IsAdmin:
		return StateAdminHome
	default:
		return StatePatronHome
	}
}

// Landing returns the view a principal in state st is routed to.
func Landing(st State) string {
	switch st {
	case StateProfileIncomplete:
		return "/complete-profile"
	case StatePatronHome:
		return "/"
	case StateAdminHome:
		return "/admin"
	default:
		return "/login"
	}
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession, or an
// unauthenticated one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{State: StateUnauthenticated}
}
