package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	defaultTimeout = 30 * time.Second
	uploadTimeout  = 10 * time.Minute
)

// Client предоставляет методы для работы с S3-совместимым хранилищем
type Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewClient создает новый экземпляр клиента S3
func NewClient(conf *Config) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	// Создаем конфигурацию AWS
	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	// Создаем клиента с кастомными настройками
	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	s3Client := &Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  conf.Bucket,
	}

	// Проверяем подключение к бакету
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := s3Client.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return s3Client, nil
}

// PresignUpload выдает подписанный URL для прямой загрузки объекта клиентом
func (h *Client) PresignUpload(ctx context.Context, key string, contentType string, size int64, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	req, err := h.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}

	return req.URL, nil
}

// PresignDownload выдает подписанный URL для скачивания объекта
func (h *Client) PresignDownload(ctx context.Context, key string, fileName string, disposition Disposition, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	contentDisposition := fmt.Sprintf("%s; filename=%q", disposition, fileName)
	req, err := h.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(h.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(contentDisposition),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	return req.URL, nil
}

// GetObject получает объект из S3
func (h *Client) GetObject(ctx context.Context, key string) (S3Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}

	result, err := h.client.GetObject(ctx, input)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	obj := &s3Object{ReadCloser: result.Body}
	if result.ContentLength != nil {
		obj.contentLength = *result.ContentLength
	}
	if result.ContentType != nil {
		obj.contentType = *result.ContentType
	}

	return obj, nil
}

// UploadBytes загружает байты в S3 (превью и другие производные объекты)
func (h *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" || data == nil {
		return fmt.Errorf("key and data are required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload bytes to S3: %w", err)
	}

	return nil
}

// DeleteObject удаляет объект из S3
func (h *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Проверяем существование объекта перед удалением
	_, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})

	// Если объект не существует, считаем операцию успешной
	var nsk *types.NoSuchKey
	if err != nil && errors.As(err, &nsk) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to check object existence: %w", err)
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}
