package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"vaultdrive/internal/domain"
	"vaultdrive/internal/queue"
	"vaultdrive/internal/service/s3"
	"vaultdrive/internal/service/scanner"
)

// Опасные MIME-типы: исполняемые файлы, скрипты и SVG.
// SVG в списке потому, что внутри него может жить исполняемый скрипт.
var dangerousMIMETypes = map[string]bool{
	"application/x-msdownload":                      true,
	"application/x-msdos-program":                   true,
	"application/vnd.microsoft.portable-executable": true,
	"application/x-executable":                      true,
	"application/x-elf":                             true,
	"application/x-mach-binary":                     true,
	"application/x-sh":                              true,
	"application/x-shellscript":                     true,
	"text/x-sh":                                     true,
	"text/x-shellscript":                            true,
	"application/x-bat":                             true,
	"application/x-php":                             true,
	"text/x-php":                                    true,
	"application/javascript":                        true,
	"text/javascript":                               true,
	"image/svg+xml":                                 true,
}

const downloadTimeout = 60 * time.Second

type processingFileStore interface {
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
	FindCleanByHash(ctx context.Context, hash string, exclude uuid.UUID) (*domain.File, error)
	CommitResult(ctx context.Context, fileUUID uuid.UUID, result *domain.ScanResult, scannedAt time.Time) (bool, error)
	MarkRejected(ctx context.Context, fileUUID uuid.UUID, reason string) error
}

type previewGenerator interface {
	Supports(mimeType string) bool
	Generate(data []byte, mimeType string) ([]byte, error)
}

// ProcessingService — машина состояний пайплайна. Скачивает объект,
// считает хэш, проверяет дубликаты, определяет настоящий MIME-тип,
// зовет антивирус, классифицирует и одним обновлением фиксирует итог.
type ProcessingService struct {
	files        processingFileStore
	storage      s3.Storage
	scanner      scanner.Scanner
	previews     previewGenerator
	audit        *AuditService
	dedupEnabled bool
}

func NewProcessingService(
	files processingFileStore,
	storage s3.Storage,
	virusScanner scanner.Scanner,
	previews previewGenerator,
	audit *AuditService,
	dedupEnabled bool,
) *ProcessingService {
	return &ProcessingService{
		files:        files,
		storage:      storage,
		scanner:      virusScanner,
		previews:     previews,
		audit:        audit,
		dedupEnabled: dedupEnabled,
	}
}

// Process обрабатывает один файл. Доставка задач идет минимум один раз,
// поэтому функция идемпотентна: файл в конечном статусе не трогаем.
// Любая ошибка — повторяемая, кроме отсутствия самой записи.
func (s *ProcessingService) Process(ctx context.Context, fileUUID uuid.UUID) error {
	file, err := s.files.GetByUUID(ctx, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Записи нет — повторять нечего
			return fmt.Errorf("%w: file %s does not exist", queue.ErrPermanent, fileUUID)
		}
		return fmt.Errorf("failed to fetch file: %w", err)
	}

	if file.Status.Terminal() {
		log.Printf("[Processing] File %s already in terminal status %s, skipping", fileUUID, file.Status)
		return nil
	}
	if file.Status != domain.StatusScanning {
		return fmt.Errorf("%w: file %s is in status %s", queue.ErrPermanent, fileUUID, file.Status)
	}

	data, err := s.download(ctx, file.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to download blob: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Дедупликация: байт-в-байт совпадающее содержимое уже прошло все
	// проверки, второй раз не сканируем
	if s.dedupEnabled {
		duplicate, err := s.files.FindCleanByHash(ctx, hash, fileUUID)
		if err != nil {
			return err
		}
		if duplicate != nil {
			result := &domain.ScanResult{
				ContentHash: hash,
				MIMEType:    derefOr(duplicate.MIMEType, file.DeclaredType),
				Status:      domain.StatusClean,
			}
			return s.commit(ctx, file, result)
		}
	}

	detectedMIME := s.sniffMIME(data, file.Name)

	result := &domain.ScanResult{
		ContentHash: hash,
		MIMEType:    detectedMIME,
	}

	scan, err := s.scanner.Scan(ctx, data)
	if err != nil {
		return fmt.Errorf("scanner failed: %w", err)
	}

	switch {
	case scan.Infected:
		reason := fmt.Sprintf("Virus detected: %s", strings.Join(scan.Signatures, ", "))
		result.Status = domain.StatusQuarantined
		result.Reason = &reason
	case dangerousMIMETypes[detectedMIME]:
		reason := fmt.Sprintf("Dangerous file type: %s", detectedMIME)
		result.Status = domain.StatusQuarantined
		result.Reason = &reason
	default:
		result.Status = domain.StatusClean
	}

	if result.Status == domain.StatusClean && s.previews != nil && s.previews.Supports(detectedMIME) {
		s.generatePreview(ctx, file, data, detectedMIME)
	}

	return s.commit(ctx, file, result)
}

// HandleExhausted вызывается очередью после исчерпания попыток: файл
// получает конечный статус rejected. Это "не смогли проверить",
// в отличие от карантина — "проверили, опасно".
func (s *ProcessingService) HandleExhausted(ctx context.Context, fileUUID uuid.UUID, cause error) {
	reason := fmt.Sprintf("Processing error: %v", cause)
	if err := s.files.MarkRejected(ctx, fileUUID, reason); err != nil {
		log.Printf("[Processing] Failed to mark file %s rejected: %v", fileUUID, err)
		return
	}

	s.audit.Record(nil, "file.processing_failed", "file", fileUUID.String(), map[string]string{
		"reason": reason,
	})
}

func (s *ProcessingService) download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	obj, err := s.storage.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}

// sniffMIME определяет тип по магическим байтам. Заявленному клиентом
// contentType не верим; если по содержимому тип не определился,
// пробуем расширение имени.
func (s *ProcessingService) sniffMIME(data []byte, fileName string) string {
	detected := mimetype.Detect(data)
	mimeType := detected.String()

	// mimetype всегда что-то возвращает; octet-stream и text/plain значат
	// "по содержимому не определить"
	base := strings.Split(mimeType, ";")[0]
	if base == "application/octet-stream" || base == "text/plain" {
		if byExt := mime.TypeByExtension(filepath.Ext(fileName)); byExt != "" {
			base = strings.Split(byExt, ";")[0]
		}
	}

	return strings.TrimSpace(base)
}

// generatePreview строит и сохраняет превью. Неудача логируется и не
// влияет на итоговый статус: чистый файл без превью остается чистым.
func (s *ProcessingService) generatePreview(ctx context.Context, file *domain.File, data []byte, mimeType string) {
	thumb, err := s.previews.Generate(data, mimeType)
	if err != nil {
		log.Printf("[Processing] Failed to generate preview for %s: %v", file.UUID, err)
		return
	}

	previewKey := fmt.Sprintf("previews/%s/%s", file.OwnerID, file.UUID)
	if err := s.storage.UploadBytes(ctx, previewKey, thumb, "image/jpeg"); err != nil {
		log.Printf("[Processing] Failed to store preview for %s: %v", file.UUID, err)
	}
}

func (s *ProcessingService) commit(ctx context.Context, file *domain.File, result *domain.ScanResult) error {
	applied, err := s.files.CommitResult(ctx, file.UUID, result, time.Now())
	if err != nil {
		return err
	}
	if !applied {
		// Кто-то успел закоммитить раньше (повторная доставка) — не страшно
		log.Printf("[Processing] Result for %s not applied, file no longer in scanning", file.UUID)
		return nil
	}

	log.Printf("[Processing] File %s classified as %s", file.UUID, result.Status)

	s.audit.Record(nil, "file.processed", "file", file.UUID.String(), map[string]string{
		"status": string(result.Status),
		"mime":   result.MIMEType,
	})

	return nil
}

func derefOr(v *string, fallback string) string {
	if v != nil && *v != "" {
		return *v
	}
	return fallback
}
