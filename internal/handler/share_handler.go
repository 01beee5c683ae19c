package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vaultdrive/internal/auth"
	"vaultdrive/internal/domain"
	"vaultdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
	fileService  *service.FileService
}

func NewShareHandler(shareService *service.ShareService, fileService *service.FileService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		fileService:  fileService,
	}
}

type createShareRequest struct {
	FileUUID   string `json:"file_uuid"`
	TTLMinutes int    `json:"ttl_minutes"`
	OneTimeUse bool   `json:"one_time_use"`
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fileUUID, err := uuid.Parse(req.FileUUID)
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}
	if req.TTLMinutes <= 0 {
		http.Error(w, "ttl_minutes must be positive", http.StatusBadRequest)
		return
	}

	share, err := h.shareService.CreateShare(
		r.Context(),
		fileUUID,
		identity.UserID,
		time.Duration(req.TTLMinutes)*time.Minute,
		req.OneTimeUse,
	)
	if err != nil {
		log.Printf("[CreateShare] Failed for file %s: %v", fileUUID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

type resolveShareResponse struct {
	File        *domain.File `json:"file"`
	DownloadURL string       `json:"download_url"`
}

// ResolveShare обменивает токен на файл и ссылку для скачивания.
// Единственный публичный маршрут: аутентификация не нужна,
// токен сам по себе и есть право доступа.
func (h *ShareHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	file, _, err := h.shareService.ResolveShare(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	url, err := h.fileService.SharedDownloadURL(r.Context(), file)
	if err != nil {
		log.Printf("[ResolveShare] Failed to presign download for %s: %v", file.UUID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resolveShareResponse{
		File:        file,
		DownloadURL: url,
	})
}
