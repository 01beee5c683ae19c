package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
)

// ErrPermanent помечает ошибку, которую повторять бессмысленно
// (например, файла уже нет). Такая задача сразу уходит в разбор.
var ErrPermanent = errors.New("permanent processing failure")

// JobStore определяет интерфейс хранилища задач. Продовая реализация —
// repository.JobRepository поверх Postgres, для тестов есть MemoryStore.
type JobStore interface {
	Enqueue(ctx context.Context, fileUUID uuid.UUID) error
	Claim(ctx context.Context, lockTTL time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, jobID int64) error
	Fail(ctx context.Context, jobID int64, errMsg string, runAt time.Time) error
	DeadLetter(ctx context.Context, job *domain.Job, errMsg string) error
}

// Handler обрабатывает один файл. Ошибка возвращает задачу в очередь.
type Handler func(ctx context.Context, fileUUID uuid.UUID) error

// ExhaustedFunc вызывается после исчерпания попыток, до переноса задачи в разбор
type ExhaustedFunc func(ctx context.Context, fileUUID uuid.UUID, cause error)

type Config struct {
	Workers        int
	MaxAttempts    int
	BaseDelay      time.Duration
	PollInterval   time.Duration
	LockTTL        time.Duration
	ProcessTimeout time.Duration
}

// Pool — пул воркеров с доставкой минимум один раз. Каждый воркер ведёт
// задачу до конца, прежде чем взять следующую; параллельность задаётся
// числом воркеров.
type Pool struct {
	store       JobStore
	handler     Handler
	onExhausted ExhaustedFunc
	cfg         Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewPool(store JobStore, handler Handler, onExhausted ExhaustedFunc, cfg Config) (*Pool, error) {
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}

	return &Pool{
		store:       store,
		handler:     handler,
		onExhausted: onExhausted,
		cfg:         cfg,
	}, nil
}

// Enqueue ставит задачу обработки файла
func (p *Pool) Enqueue(ctx context.Context, fileUUID uuid.UUID) error {
	return p.store.Enqueue(ctx, fileUUID)
}

// Start запускает воркеры
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("pool already started")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	log.Printf("[Queue] Started %d workers", p.cfg.Workers)
	return nil
}

// Stop останавливает пул и дожидается завершения текущих задач
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	p.wg.Wait()
	log.Printf("[Queue] Stopped")
}

func (p *Pool) run(ctx context.Context, worker int) {
	defer p.wg.Done()

	for {
		job, err := p.store.Claim(ctx, p.cfg.LockTTL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Queue] Worker %d: failed to claim job: %v", worker, err)
		}

		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.dispatch(ctx, worker, job)

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pool) dispatch(ctx context.Context, worker int, job *domain.Job) {
	handlerCtx, cancel := context.WithTimeout(ctx, p.cfg.ProcessTimeout)
	err := p.safeHandle(handlerCtx, job.FileUUID)
	cancel()

	// Служебные операции над очередью не должны умирать вместе с
	// отменённым контекстом задачи
	storeCtx, cancelStore := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStore()

	if err == nil {
		if err := p.store.Complete(storeCtx, job.ID); err != nil {
			log.Printf("[Queue] Worker %d: failed to complete job %d: %v", worker, job.ID, err)
		}
		return
	}

	if errors.Is(err, ErrPermanent) || job.Attempts >= p.cfg.MaxAttempts {
		log.Printf("[Queue] Worker %d: job %d for file %s dead-lettered after %d attempts: %v",
			worker, job.ID, job.FileUUID, job.Attempts, err)

		if p.onExhausted != nil {
			p.onExhausted(storeCtx, job.FileUUID, err)
		}
		if err := p.store.DeadLetter(storeCtx, job, err.Error()); err != nil {
			log.Printf("[Queue] Worker %d: failed to dead-letter job %d: %v", worker, job.ID, err)
		}
		return
	}

	// Экспоненциальная задержка: base, 2*base, 4*base, ...
	delay := p.cfg.BaseDelay << uint(job.Attempts-1)
	log.Printf("[Queue] Worker %d: job %d for file %s failed (attempt %d/%d), retrying in %v: %v",
		worker, job.ID, job.FileUUID, job.Attempts, p.cfg.MaxAttempts, delay, err)

	if err := p.store.Fail(storeCtx, job.ID, err.Error(), time.Now().Add(delay)); err != nil {
		log.Printf("[Queue] Worker %d: failed to reschedule job %d: %v", worker, job.ID, err)
	}
}

// safeHandle перехватывает панику обработчика, превращая её в обычную
// повторяемую ошибку
func (p *Pool) safeHandle(ctx context.Context, fileUUID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return p.handler(ctx, fileUUID)
}
