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

// JobRepository хранит задачи обработки в Postgres. Захват задачи идёт
// через FOR UPDATE SKIP LOCKED, поэтому несколько воркеров не получат
// одну и ту же задачу одновременно.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Enqueue(ctx context.Context, fileUUID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processing_jobs (file_uuid) VALUES ($1) ON CONFLICT (file_uuid) DO NOTHING`,
		fileUUID)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Claim захватывает ближайшую готовую задачу и увеличивает счётчик попыток.
// Возвращает nil без ошибки, если готовых задач нет.
func (r *JobRepository) Claim(ctx context.Context, lockTTL time.Duration) (*domain.Job, error) {
	query := `
        UPDATE processing_jobs
        SET locked_until = CURRENT_TIMESTAMP + $1::interval,
            attempts = attempts + 1
        WHERE id = (
            SELECT id FROM processing_jobs
            WHERE run_at <= CURRENT_TIMESTAMP
            AND (locked_until IS NULL OR locked_until <= CURRENT_TIMESTAMP)
            ORDER BY run_at
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING *`

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query, fmt.Sprintf("%d milliseconds", lockTTL.Milliseconds()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

// Complete убирает успешно обработанную задачу из очереди
func (r *JobRepository) Complete(ctx context.Context, jobID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

// Fail возвращает задачу в очередь с отложенным запуском
func (r *JobRepository) Fail(ctx context.Context, jobID int64, errMsg string, runAt time.Time) error {
	query := `
        UPDATE processing_jobs
        SET run_at = $2, locked_until = NULL, last_error = $3
        WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, jobID, runAt, errMsg)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}

	return nil
}

// DeadLetter переносит задачу в таблицу разбора. Задача не теряется:
// оператор может посмотреть причину и при необходимости перезапустить руками.
func (r *JobRepository) DeadLetter(ctx context.Context, job *domain.Job, errMsg string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO processing_dead_letters (file_uuid, attempts, error) VALUES ($1, $2, $3)`,
		job.FileUUID, job.Attempts, errMsg)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to remove job: %w", err)
	}

	return tx.Commit()
}

func (r *JobRepository) DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	var letters []domain.DeadLetter
	query := `SELECT * FROM processing_dead_letters ORDER BY failed_at DESC LIMIT $1`

	err := r.db.SelectContext(ctx, &letters, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	return letters, nil
}
