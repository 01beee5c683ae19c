package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"vaultdrive/internal/domain"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, record *domain.AuditRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
        INSERT INTO audit_records (actor_id, action, target_type, target_id, metadata)
        VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query,
		record.ActorID,
		record.Action,
		record.TargetType,
		record.TargetID,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}
