package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

const callerKey = "auth_caller"

// ServiceAuthMiddleware validates bearer service tokens on the manual
// routing endpoints.
type ServiceAuthMiddleware struct {
	tokens *TokenManager
}

// NewServiceAuthMiddleware constructs middleware.
func NewServiceAuthMiddleware(tokens *TokenManager) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *ServiceAuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(callerKey, claims.ServiceName)
	return c.Next()
}

// CallerFromContext retrieves the authenticated peer service name.
func CallerFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(callerKey)
	if val == nil {
		return "", false
	}
	caller, ok := val.(string)
	return caller, ok
}
