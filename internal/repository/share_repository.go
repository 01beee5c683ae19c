package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"vaultdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
        INSERT INTO shares (id, file_uuid, owner_id, token, expires_at, one_time_use)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		share.ID,
		share.FileUUID,
		share.OwnerID,
		share.Token,
		share.ExpiresAt,
		share.OneTimeUse,
	).Scan(&share.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

// GetValidByToken возвращает действующую ссылку: не истёкшую и,
// для одноразовых, ещё не использованную. sql.ErrNoRows отдаётся
// как есть, наверху он схлопывается в NotFound.
func (r *ShareRepository) GetValidByToken(ctx context.Context, token string) (*domain.Share, error) {
	query := `
        SELECT * FROM shares
        WHERE token = $1
        AND expires_at > CURRENT_TIMESTAMP
        AND (NOT one_time_use OR used_at IS NULL)`

	var share domain.Share
	if err := r.db.GetContext(ctx, &share, query, token); err != nil {
		return nil, err
	}

	return &share, nil
}

// ConsumeOneTime атомарно помечает одноразовую ссылку использованной.
// Из двух одновременных обращений строку получит ровно одно:
// условие used_at IS NULL выигрывает только один UPDATE.
func (r *ShareRepository) ConsumeOneTime(ctx context.Context, token string) (*domain.Share, error) {
	query := `
        UPDATE shares
        SET used_at = CURRENT_TIMESTAMP
        WHERE token = $1
        AND expires_at > CURRENT_TIMESTAMP
        AND used_at IS NULL
        RETURNING *`

	var share domain.Share
	if err := r.db.GetContext(ctx, &share, query, token); err != nil {
		return nil, err
	}

	return &share, nil
}

// CleanupExpired удаляет истёкшие и использованные ссылки
func (r *ShareRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
        DELETE FROM shares
        WHERE expires_at < CURRENT_TIMESTAMP
        OR (one_time_use AND used_at IS NOT NULL)`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired shares: %w", err)
	}

	return result.RowsAffected()
}
