package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
)

type shareStore interface {
	Create(ctx context.Context, share *domain.Share) error
	GetValidByToken(ctx context.Context, token string) (*domain.Share, error)
	ConsumeOneTime(ctx context.Context, token string) (*domain.Share, error)
}

type shareFileStore interface {
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
}

type shareUserStore interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

// ShareService выдает и проверяет ссылки на файлы: ограниченные по
// времени, опционально одноразовые. Делиться можно только чистым файлом.
type ShareService struct {
	shares shareStore
	files  shareFileStore
	users  shareUserStore
	audit  *AuditService
}

func NewShareService(shares shareStore, files shareFileStore, users shareUserStore, audit *AuditService) *ShareService {
	return &ShareService{
		shares: shares,
		files:  files,
		users:  users,
		audit:  audit,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateShare создает ссылку на файл. Право есть у владельца и у
// администратора; файл должен быть в статусе clean.
func (s *ShareService) CreateShare(
	ctx context.Context,
	fileUUID uuid.UUID,
	issuerID string,
	ttl time.Duration,
	oneTimeUse bool,
) (*domain.Share, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}

	file, err := s.files.GetByUUID(ctx, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if file.OwnerID != issuerID {
		issuer, err := s.users.GetByID(ctx, issuerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get issuer: %w", err)
		}
		if issuer.Role != domain.RoleAdmin {
			return nil, ErrAccessDenied
		}
	}

	if file.Status != domain.StatusClean {
		return nil, fmt.Errorf("%w: file is %s", ErrInvalidState, file.Status)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	share := &domain.Share{
		ID:         uuid.New(),
		FileUUID:   fileUUID,
		OwnerID:    issuerID,
		Token:      token,
		ExpiresAt:  time.Now().Add(ttl),
		OneTimeUse: oneTimeUse,
	}

	if err := s.shares.Create(ctx, share); err != nil {
		return nil, err
	}

	s.audit.Record(&issuerID, "share.create", "share", share.ID.String(), map[string]string{
		"file_uuid": fileUUID.String(),
		"one_time":  fmt.Sprintf("%t", oneTimeUse),
	})

	return share, nil
}

// ResolveShare обменивает токен на файл. Несуществующий, истекший и уже
// использованный токен неразличимы снаружи — везде NotFound. Одноразовый
// токен гасится атомарно тем же запросом, который его возвращает, поэтому
// из двух одновременных обращений выиграет только одно.
func (s *ShareService) ResolveShare(ctx context.Context, token string) (*domain.File, *domain.Share, error) {
	share, err := s.shares.GetValidByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	if share.OneTimeUse {
		share, err = s.shares.ConsumeOneTime(ctx, token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Конкурирующий запрос успел использовать токен первым
				return nil, nil, ErrNotFound
			}
			return nil, nil, err
		}
	}

	file, err := s.files.GetByUUID(ctx, share.FileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	// Файл мог уйти в карантин административно уже после выдачи ссылки
	if file.Status != domain.StatusClean {
		return nil, nil, ErrNotFound
	}

	s.audit.Record(nil, "share.resolve", "share", share.ID.String(), map[string]string{
		"file_uuid": file.UUID.String(),
	})

	return file, share, nil
}
