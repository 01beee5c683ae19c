package domain

import "time"

// AuditRecord представляет запись журнала действий
type AuditRecord struct {
	ID         int64             `json:"id" db:"id"`
	ActorID    *string           `json:"actor_id,omitempty" db:"actor_id"`
	Action     string            `json:"action" db:"action"`
	TargetType string            `json:"target_type" db:"target_type"`
	TargetID   string            `json:"target_id" db:"target_id"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
