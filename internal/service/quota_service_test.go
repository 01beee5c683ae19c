package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultdrive/internal/domain"
)

func seedFiles(store *fakeFileStore, ownerID string, status domain.FileStatus, sizes ...int64) {
	for _, size := range sizes {
		store.put(&domain.File{
			UUID:      uuid.New(),
			Name:      "seed",
			OwnerID:   ownerID,
			SizeBytes: size,
			Status:    status,
		})
	}
}

func TestQuotaServiceCheckAdmission(t *testing.T) {
	tests := []struct {
		name     string
		quota    int64
		files    int64
		seed     func(store *fakeFileStore)
		incoming int64
		wantErr  error
	}{
		{
			name:     "fits within quota",
			quota:    1000,
			files:    10,
			seed:     func(s *fakeFileStore) { seedFiles(s, "owner", domain.StatusClean, 900) },
			incoming: 50,
		},
		{
			name:     "exceeds storage quota",
			quota:    1000,
			files:    10,
			seed:     func(s *fakeFileStore) { seedFiles(s, "owner", domain.StatusClean, 900) },
			incoming: 200,
			wantErr:  ErrQuotaExceeded,
		},
		{
			name:  "quarantined files still occupy storage",
			quota: 1000,
			files: 10,
			seed: func(s *fakeFileStore) {
				seedFiles(s, "owner", domain.StatusQuarantined, 900)
			},
			incoming: 200,
			wantErr:  ErrQuotaExceeded,
		},
		{
			name:  "rejected files do not count",
			quota: 1000,
			files: 10,
			seed: func(s *fakeFileStore) {
				seedFiles(s, "owner", domain.StatusRejected, 900)
			},
			incoming: 200,
		},
		{
			name:  "pending and scanning count",
			quota: 1000,
			files: 10,
			seed: func(s *fakeFileStore) {
				seedFiles(s, "owner", domain.StatusPending, 500)
				seedFiles(s, "owner", domain.StatusScanning, 400)
			},
			incoming: 200,
			wantErr:  ErrQuotaExceeded,
		},
		{
			name:  "file count limit",
			quota: 1000000,
			files: 2,
			seed: func(s *fakeFileStore) {
				seedFiles(s, "owner", domain.StatusClean, 1, 1)
			},
			incoming: 1,
			wantErr:  ErrQuotaExceeded,
		},
		{
			name:  "other owners do not count",
			quota: 1000,
			files: 10,
			seed: func(s *fakeFileStore) {
				seedFiles(s, "someone-else", domain.StatusClean, 900)
			},
			incoming: 900,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := newFakeFileStore()
			tt.seed(files)
			users := newFakeUserStore(&domain.User{
				ID:                "owner",
				StorageQuotaBytes: tt.quota,
				FilesQuota:        tt.files,
				Role:              domain.RoleUser,
			})

			svc := NewQuotaService(users, files)
			err := svc.CheckAdmission(context.Background(), "owner", tt.incoming)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestQuotaServiceGetQuotaInfo(t *testing.T) {
	files := newFakeFileStore()
	seedFiles(files, "owner", domain.StatusClean, 300, 100)
	users := newFakeUserStore(&domain.User{
		ID:                "owner",
		StorageQuotaBytes: 1000,
		FilesQuota:        50,
		Role:              domain.RoleUser,
	})

	svc := NewQuotaService(users, files)
	info, err := svc.GetQuotaInfo(context.Background(), "owner")
	require.NoError(t, err)

	assert.Equal(t, int64(1000), info.TotalSpace)
	assert.Equal(t, int64(400), info.UsedSpace)
	assert.Equal(t, int64(600), info.AvailableSpace)
	assert.InDelta(t, 40.0, info.UsagePercent, 0.01)
	assert.Equal(t, int64(2), info.FilesCount)
	assert.Equal(t, int64(50), info.FilesQuota)
}
