package s3

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryingStorage оборачивает Storage и повторяет сетевые операции
// с экспоненциальной задержкой. Подписывание URL не повторяем:
// это локальная криптография, сеть там не участвует.
type RetryingStorage struct {
	delegate     Storage
	buildBackoff func() backoff.BackOff
}

func NewRetryingStorage(delegate Storage, factory func() backoff.BackOff) *RetryingStorage {
	if factory == nil {
		factory = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		}
	}
	return &RetryingStorage{delegate: delegate, buildBackoff: factory}
}

func (s *RetryingStorage) PresignUpload(ctx context.Context, key string, contentType string, size int64, ttl time.Duration) (string, error) {
	return s.delegate.PresignUpload(ctx, key, contentType, size, ttl)
}

func (s *RetryingStorage) PresignDownload(ctx context.Context, key string, fileName string, disposition Disposition, ttl time.Duration) (string, error) {
	return s.delegate.PresignDownload(ctx, key, fileName, disposition, ttl)
}

func (s *RetryingStorage) GetObject(ctx context.Context, key string) (S3Object, error) {
	var obj S3Object
	err := s.retry(ctx, func() error {
		var err error
		obj, err = s.delegate.GetObject(ctx, key)
		return err
	})
	return obj, err
}

func (s *RetryingStorage) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return s.retry(ctx, func() error { return s.delegate.UploadBytes(ctx, key, data, contentType) })
}

func (s *RetryingStorage) DeleteObject(ctx context.Context, key string) error {
	return s.retry(ctx, func() error { return s.delegate.DeleteObject(ctx, key) })
}

func (s *RetryingStorage) retry(ctx context.Context, fn func() error) error {
	b := backoff.WithContext(s.buildBackoff(), ctx)
	return backoff.Retry(fn, b)
}

var _ Storage = (*RetryingStorage)(nil)
