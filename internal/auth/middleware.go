package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/visionops/ticket-service/internal/domain"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

const principalLocalKey = "auth_principal"

// Principal identifies the authenticated caller of a request.
type Principal struct {
	ID   string
	Type domain.SubjectType
}

// Actor renders the principal in the form stored in ticket history.
func (p Principal) Actor() string {
	if p.Type == domain.SubjectTypeProvider {
		return "provider:" + p.ID
	}
	return "user:" + p.ID
}

// AuthMiddleware validates bearer tokens and attaches the principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle requires a valid "Authorization: Bearer <token>" header.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("malformed authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid or expired token")
	}

	c.Locals(principalLocalKey, Principal{ID: claims.SubjectID, Type: claims.Subject})
	return c.Next()
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalLocalKey).(Principal)
	return p, ok
}
