package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vaultdrive/internal/auth"
	"vaultdrive/internal/service"
	"vaultdrive/internal/service/s3"
)

type FileHandler struct {
	uploadService *service.UploadService
	fileService   *service.FileService
	quotaService  *service.QuotaService
}

func NewFileHandler(
	uploadService *service.UploadService,
	fileService *service.FileService,
	quotaService *service.QuotaService,
) *FileHandler {
	return &FileHandler{
		uploadService: uploadService,
		fileService:   fileService,
		quotaService:  quotaService,
	}
}

type initiateUploadRequest struct {
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// InitiateUpload создает запись файла и выдает URL для прямой загрузки
func (h *FileHandler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req initiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.uploadService.Initiate(r.Context(), identity.UserID, req.Name, req.SizeBytes, req.ContentType)
	if err != nil {
		log.Printf("[InitiateUpload] Failed for user %s: %v", identity.UserID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// CompleteUpload подтверждает прямую загрузку и ставит файл в очередь проверки
func (h *FileHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	file, err := h.uploadService.Complete(r.Context(), fileUUID, identity.UserID)
	if err != nil {
		log.Printf("[CompleteUpload] Failed for file %s: %v", fileUUID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := h.fileService.ListFiles(r.Context(), identity.UserID)
	if err != nil {
		log.Printf("[ListFiles] Failed for user %s: %v", identity.UserID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// GetFile возвращает запись файла, включая статус проверки.
// Клиент опрашивает этот метод, пока файл не выйдет из scanning.
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.GetFile(r.Context(), fileUUID, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// DownloadFile выдает подписанный URL для скачивания чистого файла
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	disposition := s3.DispositionAttachment
	if r.URL.Query().Get("inline") == "true" {
		disposition = s3.DispositionInline
	}

	url, err := h.fileService.DownloadURL(r.Context(), fileUUID, identity.UserID, disposition)
	if err != nil {
		log.Printf("[DownloadFile] Failed for file %s: %v", fileUUID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if err := h.fileService.Delete(r.Context(), fileUUID, identity.UserID); err != nil {
		log.Printf("[DeleteFile] Failed for file %s: %v", fileUUID, err)
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OverrideQuarantine снимает карантин с файла (только администратор)
func (h *FileHandler) OverrideQuarantine(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.OverrideQuarantine(r.Context(), fileUUID, identity.UserID)
	if err != nil {
		log.Printf("[OverrideQuarantine] Failed for file %s: %v", fileUUID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), identity.UserID)
	if err != nil {
		log.Printf("[GetQuota] Failed for user %s: %v", identity.UserID, err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
