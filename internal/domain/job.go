package domain

import (
	"github.com/google/uuid"
	"time"
)

// Job представляет задачу обработки файла в очереди
type Job struct {
	ID          int64      `json:"id" db:"id"`
	FileUUID    uuid.UUID  `json:"file_uuid" db:"file_uuid"`
	Attempts    int        `json:"attempts" db:"attempts"`
	RunAt       time.Time  `json:"run_at" db:"run_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	LastError   *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// DeadLetter представляет задачу, исчерпавшую попытки.
// Хранится для ручного разбора, автоматически не перезапускается.
type DeadLetter struct {
	ID       int64     `json:"id" db:"id"`
	FileUUID uuid.UUID `json:"file_uuid" db:"file_uuid"`
	Attempts int       `json:"attempts" db:"attempts"`
	Error    string    `json:"error" db:"error"`
	FailedAt time.Time `json:"failed_at" db:"failed_at"`
}
