package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
	"vaultdrive/internal/service/s3"
	"vaultdrive/internal/service/scanner"
)

// fakeFileStore хранит файлы в памяти и реализует все стороны
// файлового репозитория, которые нужны сервисам в тестах.
type fakeFileStore struct {
	mu       sync.Mutex
	files    map[uuid.UUID]*domain.File
	enqueued []uuid.UUID

	createErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (f *fakeFileStore) put(file *domain.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *file
	f.files[file.UUID] = &copied
}

func (f *fakeFileStore) get(fileUUID uuid.UUID) *domain.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.files[fileUUID]; ok {
		copied := *file
		return &copied
	}
	return nil
}

func (f *fakeFileStore) Create(_ context.Context, file *domain.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	f.put(file)
	return nil
}

func (f *fakeFileStore) GetByUUID(_ context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	if file := f.get(fileUUID); file != nil {
		return file, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFileStore) ListByOwner(_ context.Context, ownerID string) ([]domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.File
	for _, file := range f.files {
		if file.OwnerID == ownerID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (f *fakeFileStore) UsageByOwner(_ context.Context, ownerID string) (*domain.StorageUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage := &domain.StorageUsage{}
	for _, file := range f.files {
		if file.OwnerID == ownerID && file.Status != domain.StatusRejected {
			usage.UsedBytes += file.SizeBytes
			usage.FilesCount++
		}
	}
	return usage, nil
}

func (f *fakeFileStore) CompleteUpload(_ context.Context, fileUUID uuid.UUID, ownerID string) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileUUID]
	if !ok || file.OwnerID != ownerID || file.Status != domain.StatusPending {
		return nil, sql.ErrNoRows
	}
	file.Status = domain.StatusScanning
	f.enqueued = append(f.enqueued, fileUUID)
	copied := *file
	return &copied, nil
}

func (f *fakeFileStore) FindCleanByHash(_ context.Context, hash string, exclude uuid.UUID) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.UUID == exclude || file.Status != domain.StatusClean {
			continue
		}
		if file.ContentHash != nil && *file.ContentHash == hash {
			copied := *file
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeFileStore) CommitResult(_ context.Context, fileUUID uuid.UUID, result *domain.ScanResult, scannedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileUUID]
	if !ok || file.Status != domain.StatusScanning {
		return false, nil
	}
	file.ContentHash = &result.ContentHash
	file.MIMEType = &result.MIMEType
	file.Status = result.Status
	file.StatusReason = result.Reason
	file.ScannedAt = &scannedAt
	return true, nil
}

func (f *fakeFileStore) MarkRejected(_ context.Context, fileUUID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileUUID]
	if !ok || file.Status != domain.StatusScanning {
		return nil
	}
	file.Status = domain.StatusRejected
	file.StatusReason = &reason
	return nil
}

func (f *fakeFileStore) OverrideQuarantine(_ context.Context, fileUUID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileUUID]
	if !ok || file.Status != domain.StatusQuarantined {
		return false, nil
	}
	file.Status = domain.StatusClean
	file.StatusReason = nil
	return true, nil
}

func (f *fakeFileStore) Delete(_ context.Context, fileUUID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileUUID)
	return nil
}

// fakeUserStore отдает заранее заданных пользователей
type fakeUserStore struct {
	users map[string]*domain.User
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (f *fakeUserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	// Как и настоящий репозиторий, создаем пользователя с дефолтами
	user := &domain.User{
		ID:                userID,
		StorageQuotaBytes: 5368709120,
		FilesQuota:        1000,
		Role:              domain.RoleUser,
	}
	f.users[userID] = user
	return user, nil
}

// fakeObject реализует s3.S3Object поверх байтового среза
type fakeObject struct {
	io.ReadCloser
	size int64
}

func (o *fakeObject) ContentLength() int64 { return o.size }
func (o *fakeObject) ContentType() string  { return "application/octet-stream" }

// fakeStorage — блобы в памяти
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	getErr    error
	uploadErr error
	presigned []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) putObject(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeStorage) object(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

func (f *fakeStorage) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://storage.test/upload/" + key
	f.presigned = append(f.presigned, url)
	return url, nil
}

func (f *fakeStorage) PresignDownload(_ context.Context, key, _ string, _ s3.Disposition, _ time.Duration) (string, error) {
	return "https://storage.test/download/" + key, nil
}

func (f *fakeStorage) GetObject(_ context.Context, key string) (s3.S3Object, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		size:       int64(len(data)),
	}, nil
}

func (f *fakeStorage) UploadBytes(_ context.Context, key string, data []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.putObject(key, data)
	return nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

// fakeScanner возвращает заранее заданный вердикт и считает вызовы
type fakeScanner struct {
	mu     sync.Mutex
	result scanner.Result
	err    error
	calls  int
}

func (f *fakeScanner) Scan(_ context.Context, _ []byte) (*scanner.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := f.result
	return &result, nil
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePreviews управляемый генератор превью
type fakePreviews struct {
	supported bool
	err       error
	generated int
}

func (f *fakePreviews) Supports(string) bool { return f.supported }

func (f *fakePreviews) Generate([]byte, string) ([]byte, error) {
	f.generated++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("thumb"), nil
}

// fakeAuditStore копит записи в памяти
type fakeAuditStore struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	err     error
}

func (f *fakeAuditStore) Insert(_ context.Context, record *domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeAuditStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newTestAudit() *AuditService {
	return NewAuditService(&fakeAuditStore{})
}
