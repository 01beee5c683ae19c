package domain

import (
	"github.com/google/uuid"
	"time"
)

type Share struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	FileUUID   uuid.UUID  `json:"file_uuid" db:"file_uuid"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	Token      string     `json:"token" db:"token"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	OneTimeUse bool       `json:"one_time_use" db:"one_time_use"`
	UsedAt     *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Valid проверяет, что ссылка ещё действительна: не истекла и,
// для одноразовых, ещё не использована.
func (s *Share) Valid(now time.Time) bool {
	if !now.Before(s.ExpiresAt) {
		return false
	}
	if s.OneTimeUse && s.UsedAt != nil {
		return false
	}
	return true
}
