package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
	"vaultdrive/internal/service/s3"
)

const downloadURLTTL = 15 * time.Minute

type fileStore interface {
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error)
	OverrideQuarantine(ctx context.Context, fileUUID uuid.UUID) (bool, error)
	Delete(ctx context.Context, fileUUID uuid.UUID) error
}

type fileUserStore interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

// FileService отвечает за доступ к уже принятым файлам: просмотр,
// скачивание, удаление и административное снятие карантина.
type FileService struct {
	files   fileStore
	users   fileUserStore
	storage s3.Storage
	audit   *AuditService
}

func NewFileService(files fileStore, users fileUserStore, storage s3.Storage, audit *AuditService) *FileService {
	return &FileService{
		files:   files,
		users:   users,
		storage: storage,
		audit:   audit,
	}
}

// getOwned возвращает файл, если он принадлежит запрашивающему или
// запрашивающий — администратор. Чужой файл неотличим от несуществующего.
func (s *FileService) getOwned(ctx context.Context, fileUUID uuid.UUID, requesterID string) (*domain.File, error) {
	file, err := s.files.GetByUUID(ctx, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if file.OwnerID != requesterID {
		requester, err := s.users.GetByID(ctx, requesterID)
		if err != nil {
			return nil, fmt.Errorf("failed to get requester: %w", err)
		}
		if requester.Role != domain.RoleAdmin {
			return nil, ErrNotFound
		}
	}

	return file, nil
}

func (s *FileService) GetFile(ctx context.Context, fileUUID uuid.UUID, requesterID string) (*domain.File, error) {
	return s.getOwned(ctx, fileUUID, requesterID)
}

func (s *FileService) ListFiles(ctx context.Context, ownerID string) ([]domain.File, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

// DownloadURL выдает подписанный URL для скачивания. Отдаем только
// чистые файлы: до вердикта и из карантина скачивать нельзя.
func (s *FileService) DownloadURL(ctx context.Context, fileUUID uuid.UUID, requesterID string, disposition s3.Disposition) (string, error) {
	file, err := s.getOwned(ctx, fileUUID, requesterID)
	if err != nil {
		return "", err
	}

	if file.Status != domain.StatusClean {
		return "", fmt.Errorf("%w: file is %s", ErrInvalidState, file.Status)
	}

	return s.storage.PresignDownload(ctx, file.StorageKey, file.Name, disposition, downloadURLTTL)
}

// SharedDownloadURL выдает URL скачивания по разрешенной ссылке
func (s *FileService) SharedDownloadURL(ctx context.Context, file *domain.File) (string, error) {
	return s.storage.PresignDownload(ctx, file.StorageKey, file.Name, s3.DispositionAttachment, downloadURLTTL)
}

// Delete удаляет файл. Во время сканирования удалять нельзя, чтобы
// пайплайн не работал с исчезающей из-под него записью.
func (s *FileService) Delete(ctx context.Context, fileUUID uuid.UUID, requesterID string) error {
	file, err := s.getOwned(ctx, fileUUID, requesterID)
	if err != nil {
		return err
	}

	if file.Status == domain.StatusScanning {
		return fmt.Errorf("%w: file is being scanned", ErrInvalidState)
	}

	if err := s.files.Delete(ctx, fileUUID); err != nil {
		return err
	}

	// Объекты в хранилище чистим по возможности: запись уже удалена,
	// осиротевший блоб хуже чем ошибка в логе, но не фатален
	if err := s.storage.DeleteObject(ctx, file.StorageKey); err != nil {
		log.Printf("[Files] Failed to delete blob %s: %v", file.StorageKey, err)
	}
	previewKey := fmt.Sprintf("previews/%s/%s", file.OwnerID, file.UUID)
	if err := s.storage.DeleteObject(ctx, previewKey); err != nil {
		log.Printf("[Files] Failed to delete preview %s: %v", previewKey, err)
	}

	s.audit.Record(&requesterID, "file.delete", "file", fileUUID.String(), nil)

	return nil
}

// OverrideQuarantine снимает карантин с файла по решению администратора.
// Единственный переход из конечного состояния, и он всегда ручной.
func (s *FileService) OverrideQuarantine(ctx context.Context, fileUUID uuid.UUID, adminID string) (*domain.File, error) {
	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if admin.Role != domain.RoleAdmin {
		return nil, ErrAccessDenied
	}

	applied, err := s.files.OverrideQuarantine(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if !applied {
		file, err := s.files.GetByUUID(ctx, fileUUID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return nil, fmt.Errorf("%w: file is %s", ErrInvalidState, file.Status)
	}

	s.audit.Record(&adminID, "file.quarantine_override", "file", fileUUID.String(), nil)

	return s.files.GetByUUID(ctx, fileUUID)
}
