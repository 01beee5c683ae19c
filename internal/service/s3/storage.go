// storage.go
package s3

import (
	"context"
	"io"
	"time"
)

// S3Object определяет интерфейс для объектов S3
type S3Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// s3Object реализует интерфейс S3Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// Disposition управляет заголовком Content-Disposition при скачивании
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// Storage определяет интерфейс для работы с S3-совместимым хранилищем.
// Клиент загружает байты напрямую по подписанному URL, сервис сами байты
// при приёме не трогает.
type Storage interface {
	PresignUpload(ctx context.Context, key string, contentType string, size int64, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, fileName string, disposition Disposition, ttl time.Duration) (string, error)
	GetObject(ctx context.Context, key string) (S3Object, error)
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}
