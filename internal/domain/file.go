package domain

import (
	"github.com/google/uuid"
	"time"
)

type FileStatus string

// Статусы файла. Жизненный цикл: pending -> scanning -> {clean|quarantined|rejected}
const (
	StatusPending     FileStatus = "pending"
	StatusScanning    FileStatus = "scanning"
	StatusClean       FileStatus = "clean"
	StatusQuarantined FileStatus = "quarantined"
	StatusRejected    FileStatus = "rejected"
)

// Terminal сообщает, является ли статус конечным.
// Конечный статус автоматический пайплайн больше не меняет.
func (s FileStatus) Terminal() bool {
	switch s {
	case StatusClean, StatusQuarantined, StatusRejected:
		return true
	}
	return false
}

type File struct {
	UUID         uuid.UUID  `json:"uuid" db:"uuid"`
	Name         string     `json:"name" db:"name"`
	StorageKey   string     `json:"-" db:"storage_key"`
	DeclaredType string     `json:"declared_type" db:"declared_type"`
	MIMEType     *string    `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes    int64      `json:"size_bytes" db:"size_bytes"`
	OwnerID      string     `json:"owner_id" db:"owner_id"`
	Status       FileStatus `json:"status" db:"status"`
	ContentHash  *string    `json:"content_hash,omitempty" db:"content_hash"`
	StatusReason *string    `json:"status_reason,omitempty" db:"status_reason"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty" db:"scanned_at"`
}

// ScanResult представляет итог обработки файла пайплайном
type ScanResult struct {
	ContentHash string
	MIMEType    string
	Status      FileStatus
	Reason      *string
}

// InitiateUploadResponse представляет ответ на запрос загрузки
type InitiateUploadResponse struct {
	File      *File  `json:"file"`
	UploadURL string `json:"upload_url"`
}
