package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
	"vaultdrive/internal/service/s3"
)

type uploadFileStore interface {
	Create(ctx context.Context, file *domain.File) error
	CompleteUpload(ctx context.Context, fileUUID uuid.UUID, ownerID string) (*domain.File, error)
}

type admissionChecker interface {
	CheckAdmission(ctx context.Context, ownerID string, incomingSizeBytes int64) error
}

// UploadService принимает загрузки. Байты файла через сервис не проходят:
// клиент получает подписанный URL и кладет объект в хранилище напрямую,
// а затем подтверждает загрузку вызовом Complete.
type UploadService struct {
	files        uploadFileStore
	quota        admissionChecker
	storage      s3.Storage
	audit        *AuditService
	maxFileSize  int64
	uploadURLTTL time.Duration
}

func NewUploadService(
	files uploadFileStore,
	quota admissionChecker,
	storage s3.Storage,
	audit *AuditService,
	maxFileSize int64,
	uploadURLTTL time.Duration,
) *UploadService {
	return &UploadService{
		files:        files,
		quota:        quota,
		storage:      storage,
		audit:        audit,
		maxFileSize:  maxFileSize,
		uploadURLTTL: uploadURLTTL,
	}
}

// Initiate проверяет размер и квоту, создает запись файла в статусе
// pending и выдает подписанный URL для прямой загрузки
func (s *UploadService) Initiate(
	ctx context.Context,
	ownerID string,
	fileName string,
	declaredSize int64,
	declaredContentType string,
) (*domain.InitiateUploadResponse, error) {
	if fileName == "" || ownerID == "" {
		return nil, fmt.Errorf("file name and owner are required")
	}
	if declaredSize <= 0 {
		return nil, fmt.Errorf("declared size must be positive")
	}

	if declaredSize > s.maxFileSize {
		return nil, fmt.Errorf("%w: max size is %d bytes", ErrPayloadTooLarge, s.maxFileSize)
	}

	if err := s.quota.CheckAdmission(ctx, ownerID, declaredSize); err != nil {
		return nil, err
	}

	fileUUID := uuid.New()
	file := &domain.File{
		UUID:         fileUUID,
		Name:         fileName,
		StorageKey:   fmt.Sprintf("files/%s/%s", ownerID, fileUUID),
		DeclaredType: declaredContentType,
		SizeBytes:    declaredSize,
		OwnerID:      ownerID,
		Status:       domain.StatusPending,
	}

	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	uploadURL, err := s.storage.PresignUpload(ctx, file.StorageKey, declaredContentType, declaredSize, s.uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	s.audit.Record(&ownerID, "file.initiate_upload", "file", fileUUID.String(), map[string]string{
		"name": fileName,
		"size": fmt.Sprintf("%d", declaredSize),
	})

	return &domain.InitiateUploadResponse{
		File:      file,
		UploadURL: uploadURL,
	}, nil
}

// Complete подтверждает, что клиент загрузил байты. Перевод в scanning и
// постановка задачи обработки происходят одной транзакцией в хранилище.
func (s *UploadService) Complete(ctx context.Context, fileUUID uuid.UUID, ownerID string) (*domain.File, error) {
	file, err := s.files.CompleteUpload(ctx, fileUUID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to complete upload: %w", err)
	}

	s.audit.Record(&ownerID, "file.complete_upload", "file", fileUUID.String(), nil)

	return file, nil
}
