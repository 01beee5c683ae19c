package service

import (
	"context"
	"fmt"

	"vaultdrive/internal/domain"
)

type quotaUserStore interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

type quotaUsageStore interface {
	UsageByOwner(ctx context.Context, ownerID string) (*domain.StorageUsage, error)
}

// QuotaService решает, пускать ли новую загрузку. Проверка — чтение и
// сравнение без блокировки: два одновременных запроса одного владельца
// могут оба пройти и в сумме превысить лимит. Это осознанная мягкая
// граница, квота здесь защита от злоупотребления, а не биллинг.
type QuotaService struct {
	users quotaUserStore
	files quotaUsageStore
}

func NewQuotaService(users quotaUserStore, files quotaUsageStore) *QuotaService {
	return &QuotaService{
		users: users,
		files: files,
	}
}

// CheckAdmission возвращает ErrQuotaExceeded, если загрузка не помещается
// в лимит места или в лимит числа файлов
func (s *QuotaService) CheckAdmission(ctx context.Context, ownerID string, incomingSizeBytes int64) error {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	usage, err := s.files.UsageByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to calculate storage usage: %w", err)
	}

	if usage.UsedBytes+incomingSizeBytes > user.StorageQuotaBytes {
		return fmt.Errorf("%w: used %d of %d bytes, incoming %d",
			ErrQuotaExceeded, usage.UsedBytes, user.StorageQuotaBytes, incomingSizeBytes)
	}
	if usage.FilesCount+1 > user.FilesQuota {
		return fmt.Errorf("%w: %d of %d files", ErrQuotaExceeded, usage.FilesCount, user.FilesQuota)
	}

	return nil
}

// GetQuotaInfo возвращает сводку по квоте владельца
func (s *QuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	usage, err := s.files.UsageByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate storage usage: %w", err)
	}

	return &domain.QuotaInfo{
		TotalSpace:     user.StorageQuotaBytes,
		UsedSpace:      usage.UsedBytes,
		AvailableSpace: user.StorageQuotaBytes - usage.UsedBytes,
		UsagePercent:   float64(usage.UsedBytes) / float64(user.StorageQuotaBytes) * 100,
		FilesCount:     usage.FilesCount,
		FilesQuota:     user.FilesQuota,
	}, nil
}
