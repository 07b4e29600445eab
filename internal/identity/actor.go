package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrNoActor is returned when an operation is attempted without an authenticated user.
var ErrNoActor = errors.New("identity: actor id is required")

// Actor is the authenticated user performing an operation. It is recorded on
// every ledger entry it produces.
type Actor struct {
	ID    string
	Name  string
	Email string
}

// Validate checks that the actor can be attributed.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrNoActor
	}
	return nil
}

// DisplayName prefers the name, then the email, then the id.
func (a Actor) DisplayName() string {
	switch {
	case strings.TrimSpace(a.Name) != "":
		return a.Name
	case a.Email != "":
		return a.Email
	default:
		return a.ID
	}
}

type ctxKey struct{}

// WithActor stores the actor on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
