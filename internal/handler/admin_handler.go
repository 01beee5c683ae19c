package handler

import (
	"context"
	"log"
	"net/http"

	"vaultdrive/internal/auth"
	"vaultdrive/internal/domain"
)

type deadLetterLister interface {
	DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

// AdminHandler — служебные маршруты для операторов
type AdminHandler struct {
	jobs deadLetterLister
}

func NewAdminHandler(jobs deadLetterLister) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// ListDeadLetters показывает задачи, исчерпавшие попытки обработки
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if identity.Role != domain.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	letters, err := h.jobs.DeadLetters(r.Context(), parseLimit(r, 100))
	if err != nil {
		log.Printf("[ListDeadLetters] Failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, letters)
}
