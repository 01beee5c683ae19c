package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID                string    `json:"id" db:"id"`
	StorageQuotaBytes int64     `json:"storage_quota_bytes" db:"storage_quota_bytes"`
	FilesQuota        int64     `json:"files_quota" db:"files_quota"`
	Role              Role      `json:"role" db:"role"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// StorageUsage представляет текущее потребление квоты владельцем
type StorageUsage struct {
	UsedBytes  int64 `db:"used_bytes"`
	FilesCount int64 `db:"files_count"`
}

type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
	FilesCount     int64   `json:"files_count"`
	FilesQuota     int64   `json:"files_quota"`
}
