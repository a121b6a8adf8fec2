package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unionhall/triage-service/internal/domain"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// RequireAdmin ensures an ADMIN is authenticated.
func RequireAdmin() fiber.Handler {
	return RequireActor(domain.ActorAdmin)
}

// RequireProponent ensures a PROPONENT is authenticated.
func RequireProponent() fiber.Handler {
	return RequireActor(domain.ActorProponent)
}

// RequireActor ensures the principal is one of the allowed actor types.
func RequireActor(allowed ...domain.ActorType) fiber.Handler {
	allowedSet := make(map[domain.ActorType]struct{}, len(allowed))
	for _, actor := range allowed {
		allowedSet[actor] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Actor]; !exists {
			return apperrors.NewPermissionDenied("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyActor ensures the caller is authenticated, regardless of role.
func RequireAnyActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
