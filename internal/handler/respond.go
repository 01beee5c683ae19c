package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"vaultdrive/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

// writeServiceError переводит ошибки сервисного слоя в HTTP-статусы
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, service.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrPayloadTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, service.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrAccessDenied):
		http.Error(w, "Access denied", http.StatusForbidden)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
