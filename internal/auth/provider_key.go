package auth

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/visionops/ticket-service/internal/domain"
	apperrors "github.com/visionops/ticket-service/pkg/util"
)

// ProviderAuth authenticates camera providers by pre-shared API key.
// Keys are stored bcrypt-hashed, keyed by provider ID.
type ProviderAuth struct {
	keys map[string]string
}

func NewProviderAuth(keys map[string]string) *ProviderAuth {
	return &ProviderAuth{keys: keys}
}

// Handle requires X-Provider-ID and X-Provider-Key headers.
func (m *ProviderAuth) Handle(c *fiber.Ctx) error {
	providerID := c.Get("X-Provider-ID")
	providerKey := c.Get("X-Provider-Key")
	if providerID == "" || providerKey == "" {
		return apperrors.NewUnauthorized("missing provider credentials")
	}

	hash, ok := m.keys[providerID]
	if !ok {
		return apperrors.NewUnauthorized("unknown provider")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(providerKey)); err != nil {
		return apperrors.NewUnauthorized("invalid provider key")
	}

	c.Locals(principalLocalKey, Principal{ID: providerID, Type: domain.SubjectTypeProvider})
	return c.Next()
}
