package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultdrive/internal/domain"
)

func newTestUploadService(files *fakeFileStore, storage *fakeStorage, quota int64) *UploadService {
	users := newFakeUserStore(&domain.User{
		ID:                "owner",
		StorageQuotaBytes: quota,
		FilesQuota:        100,
		Role:              domain.RoleUser,
	})
	return NewUploadService(
		files,
		NewQuotaService(users, files),
		storage,
		newTestAudit(),
		10*1024*1024,
		15*time.Minute,
	)
}

func TestUploadServiceInitiate(t *testing.T) {
	files := newFakeFileStore()
	storage := newFakeStorage()
	svc := newTestUploadService(files, storage, 1000)

	resp, err := svc.Initiate(context.Background(), "owner", "report.pdf", 500, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, resp.File.Status)
	assert.Equal(t, "owner", resp.File.OwnerID)
	assert.Equal(t, "report.pdf", resp.File.Name)
	assert.Contains(t, resp.File.StorageKey, "files/owner/")
	assert.Contains(t, resp.UploadURL, resp.File.StorageKey)

	// Запись действительно создана в pending
	stored := files.get(resp.File.UUID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestUploadServiceInitiatePayloadTooLarge(t *testing.T) {
	svc := newTestUploadService(newFakeFileStore(), newFakeStorage(), 1<<40)

	_, err := svc.Initiate(context.Background(), "owner", "huge.bin", 11*1024*1024, "application/octet-stream")
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestUploadServiceInitiateQuotaExceeded(t *testing.T) {
	files := newFakeFileStore()
	seedFiles(files, "owner", domain.StatusClean, 900)
	svc := newTestUploadService(files, newFakeStorage(), 1000)

	_, err := svc.Initiate(context.Background(), "owner", "big.bin", 200, "application/octet-stream")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = svc.Initiate(context.Background(), "owner", "small.bin", 50, "application/octet-stream")
	require.NoError(t, err)
}

func TestUploadServiceComplete(t *testing.T) {
	files := newFakeFileStore()
	svc := newTestUploadService(files, newFakeStorage(), 1000)

	resp, err := svc.Initiate(context.Background(), "owner", "doc.txt", 10, "text/plain")
	require.NoError(t, err)

	file, err := svc.Complete(context.Background(), resp.File.UUID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScanning, file.Status)

	// Статус и задача меняются вместе
	require.Len(t, files.enqueued, 1)
	assert.Equal(t, resp.File.UUID, files.enqueued[0])
}

func TestUploadServiceCompleteNotFound(t *testing.T) {
	files := newFakeFileStore()
	svc := newTestUploadService(files, newFakeStorage(), 1000)

	// Неизвестный файл
	_, err := svc.Complete(context.Background(), uuid.New(), "owner")
	require.ErrorIs(t, err, ErrNotFound)

	// Чужой файл неотличим от несуществующего
	resp, err := svc.Initiate(context.Background(), "owner", "doc.txt", 10, "text/plain")
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), resp.File.UUID, "intruder")
	require.ErrorIs(t, err, ErrNotFound)

	// Повторный Complete тоже NotFound: файл уже не pending
	_, err = svc.Complete(context.Background(), resp.File.UUID, "owner")
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), resp.File.UUID, "owner")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, files.enqueued, 1)
}
