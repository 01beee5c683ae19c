package auth

import (
	"fmt"
	"net/http"

	"vaultdrive/internal/domain"
)

// Identity — проверенная личность запрашивающего. Аутентификацией
// занимается внешний шлюз: он проверяет сессию и проставляет заголовки
// X-User-Id и X-User-Role, напрямую сервис наружу не торчит.
type Identity struct {
	UserID string
	Role   domain.Role
}

// VerifyRequest извлекает личность из заголовков шлюза
func VerifyRequest(r *http.Request) (*Identity, error) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return nil, fmt.Errorf("no authenticated user")
	}

	role := domain.Role(r.Header.Get("X-User-Role"))
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}

	return &Identity{
		UserID: userID,
		Role:   role,
	}, nil
}
