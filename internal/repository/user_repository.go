package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"vaultdrive/internal/domain"
)

// Лимиты по умолчанию для новых пользователей
const (
	defaultStorageQuotaBytes = 5368709120 // 5GB
	defaultFilesQuota        = 1000
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User

	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE id = $1`,
		userID)

	if err != nil {
		// Если пользователя нет, создаем запись с дефолтными лимитами
		if errors.Is(err, sql.ErrNoRows) {
			user = domain.User{
				ID:                userID,
				StorageQuotaBytes: defaultStorageQuotaBytes,
				FilesQuota:        defaultFilesQuota,
				Role:              domain.RoleUser,
			}

			if err := r.Create(ctx, &user); err != nil {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			return &user, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (id, storage_quota_bytes, files_quota, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		user.ID,
		user.StorageQuotaBytes,
		user.FilesQuota,
		user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) UpdateQuotaLimit(ctx context.Context, userID string, newLimit int64) error {
	query := `
        UPDATE users
        SET storage_quota_bytes = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, userID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}

	return nil
}
