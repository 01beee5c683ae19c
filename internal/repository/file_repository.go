package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vaultdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (uuid, name, storage_key, declared_type, size_bytes, owner_id, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.StorageKey,
		file.DeclaredType,
		file.SizeBytes,
		file.OwnerID,
		file.Status,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

func (r *FileRepository) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE uuid = $1`

	err := r.db.GetContext(ctx, &file, query, fileUUID)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error) {
	var files []domain.File
	query := `SELECT * FROM files WHERE owner_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &files, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// UsageByOwner считает занятое место и число файлов владельца.
// Отклонённые файлы место не занимают, всё остальное (включая
// карантин) учитывается.
func (r *FileRepository) UsageByOwner(ctx context.Context, ownerID string) (*domain.StorageUsage, error) {
	var usage domain.StorageUsage
	query := `
        SELECT COALESCE(SUM(size_bytes), 0) AS used_bytes, COUNT(*) AS files_count
        FROM files
        WHERE owner_id = $1 AND status != 'rejected'`

	err := r.db.GetContext(ctx, &usage, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate storage usage: %w", err)
	}

	return &usage, nil
}

// CompleteUpload переводит файл из pending в scanning и в той же транзакции
// ставит задачу обработки. Либо происходит и то и другое, либо ничего:
// строка в scanning без задачи — это навсегда зависший файл.
func (r *FileRepository) CompleteUpload(ctx context.Context, fileUUID uuid.UUID, ownerID string) (*domain.File, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var file domain.File
	query := `
        UPDATE files
        SET status = 'scanning', updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND owner_id = $2 AND status = 'pending'
        RETURNING *`

	if err := tx.GetContext(ctx, &file, query, fileUUID, ownerID); err != nil {
		return nil, err
	}

	// Повторная постановка той же задачи безвредна: пайплайн идемпотентен
	_, err = tx.ExecContext(ctx,
		`INSERT INTO processing_jobs (file_uuid) VALUES ($1) ON CONFLICT (file_uuid) DO NOTHING`,
		fileUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue processing job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &file, nil
}

// FindCleanByHash ищет чужой или свой уже проверенный файл с тем же
// содержимым. Возвращает nil без ошибки, если дубликата нет.
func (r *FileRepository) FindCleanByHash(ctx context.Context, hash string, exclude uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `
        SELECT * FROM files
        WHERE content_hash = $1 AND status = 'clean' AND uuid != $2
        LIMIT 1`

	err := r.db.GetContext(ctx, &file, query, hash, exclude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up duplicate: %w", err)
	}

	return &file, nil
}

// CommitResult записывает итог обработки одним обновлением.
// Условие status = 'scanning' защищает конечные состояния: повторная
// доставка задачи для уже обработанного файла ничего не перезапишет.
func (r *FileRepository) CommitResult(ctx context.Context, fileUUID uuid.UUID, result *domain.ScanResult, scannedAt time.Time) (bool, error) {
	query := `
        UPDATE files
        SET content_hash = $2,
            mime_type = $3,
            status = $4,
            status_reason = $5,
            scanned_at = $6,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND status = 'scanning'`

	res, err := r.db.ExecContext(ctx, query,
		fileUUID,
		result.ContentHash,
		result.MIMEType,
		result.Status,
		result.Reason,
		scannedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to commit scan result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// MarkRejected переводит файл в rejected после исчерпания попыток обработки
func (r *FileRepository) MarkRejected(ctx context.Context, fileUUID uuid.UUID, reason string) error {
	query := `
        UPDATE files
        SET status = 'rejected',
            status_reason = $2,
            scanned_at = CURRENT_TIMESTAMP,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND status = 'scanning'`

	_, err := r.db.ExecContext(ctx, query, fileUUID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark file rejected: %w", err)
	}

	return nil
}

// OverrideQuarantine снимает карантин по решению администратора.
// Единственный разрешённый переход из конечного состояния.
func (r *FileRepository) OverrideQuarantine(ctx context.Context, fileUUID uuid.UUID) (bool, error) {
	query := `
        UPDATE files
        SET status = 'clean',
            status_reason = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND status = 'quarantined'`

	res, err := r.db.ExecContext(ctx, query, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to override quarantine: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *FileRepository) Delete(ctx context.Context, fileUUID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE uuid = $1`, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
