package service

import (
	"context"
	"log"
	"sync"
	"time"

	"vaultdrive/internal/domain"
)

type auditStore interface {
	Insert(ctx context.Context, record *domain.AuditRecord) error
}

const (
	auditBufferSize   = 1024
	auditWriteTimeout = 5 * time.Second
)

// AuditService пишет журнал действий в режиме "выстрелил и забыл".
// Запись не блокирует и не роняет основную операцию: при переполнении
// буфера событие теряется с пометкой в логе, ошибки записи глотаются.
type AuditService struct {
	store auditStore

	events chan *domain.AuditRecord
	done   chan struct{}
	once   sync.Once
}

func NewAuditService(store auditStore) *AuditService {
	s := &AuditService{
		store:  store,
		events: make(chan *domain.AuditRecord, auditBufferSize),
		done:   make(chan struct{}),
	}

	go s.writeLoop()

	return s
}

// Record ставит запись в очередь на запись. Никогда не блокирует.
func (s *AuditService) Record(actorID *string, action, targetType, targetID string, metadata map[string]string) {
	record := &domain.AuditRecord{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	}

	select {
	case s.events <- record:
	default:
		log.Printf("[Audit] Buffer full, dropping record: %s %s/%s", action, targetType, targetID)
	}
}

func (s *AuditService) writeLoop() {
	defer close(s.done)

	for record := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		if err := s.store.Insert(ctx, record); err != nil {
			log.Printf("[Audit] Failed to write record %s %s/%s: %v",
				record.Action, record.TargetType, record.TargetID, err)
		}
		cancel()
	}
}

// Close дописывает накопленные события и останавливает сервис
func (s *AuditService) Close() {
	s.once.Do(func() {
		close(s.events)
	})
	<-s.done
}
