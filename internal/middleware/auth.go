package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/identity"
)

const actorLocal = "actor"

// TokenVerifier turns a bearer token into the acting user.
type TokenVerifier interface {
	Verify(token string) (identity.Actor, error)
}

// Authenticate validates the bearer token and stores the actor on the request
// locals and on the user context.
func Authenticate(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		actor, err := verifier.Verify(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(actorLocal, actor)
		c.SetUserContext(identity.WithActor(c.UserContext(), actor))
		return c.Next()
	}
}

// CurrentActor returns the actor set by Authenticate.
func CurrentActor(c *fiber.Ctx) (identity.Actor, error) {
	actor, ok := c.Locals(actorLocal).(identity.Actor)
	if !ok {
		actor, ok = identity.FromContext(c.UserContext())
	}
	if !ok || actor.Validate() != nil {
		return identity.Actor{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return actor, nil
}
