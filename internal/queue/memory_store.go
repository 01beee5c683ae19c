package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaultdrive/internal/domain"
)

// MemoryStore — хранилище задач в памяти. Используется в тестах и при
// локальном запуске без Postgres; семантика совпадает с JobRepository.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    map[int64]*domain.Job
	active  map[uuid.UUID]int64
	letters []domain.DeadLetter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[int64]*domain.Job),
		active: make(map[uuid.UUID]int64),
	}
}

func (s *MemoryStore) Enqueue(_ context.Context, fileUUID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Повторная постановка активной задачи игнорируется
	if _, ok := s.active[fileUUID]; ok {
		return nil
	}

	s.nextID++
	job := &domain.Job{
		ID:        s.nextID,
		FileUUID:  fileUUID,
		RunAt:     time.Now(),
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	s.active[fileUUID] = job.ID

	return nil
}

func (s *MemoryStore) Claim(_ context.Context, lockTTL time.Duration) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var candidate *domain.Job
	for _, job := range s.jobs {
		if job.RunAt.After(now) {
			continue
		}
		if job.LockedUntil != nil && job.LockedUntil.After(now) {
			continue
		}
		if candidate == nil || job.RunAt.Before(candidate.RunAt) {
			candidate = job
		}
	}

	if candidate == nil {
		return nil, nil
	}

	lockedUntil := now.Add(lockTTL)
	candidate.LockedUntil = &lockedUntil
	candidate.Attempts++

	copied := *candidate
	return &copied, nil
}

func (s *MemoryStore) Complete(_ context.Context, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		delete(s.active, job.FileUUID)
		delete(s.jobs, jobID)
	}

	return nil
}

func (s *MemoryStore) Fail(_ context.Context, jobID int64, errMsg string, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}

	job.RunAt = runAt
	job.LockedUntil = nil
	job.LastError = &errMsg

	return nil
}

func (s *MemoryStore) DeadLetter(_ context.Context, job *domain.Job, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.letters = append(s.letters, domain.DeadLetter{
		ID:       int64(len(s.letters) + 1),
		FileUUID: job.FileUUID,
		Attempts: job.Attempts,
		Error:    errMsg,
		FailedAt: time.Now(),
	})

	if stored, ok := s.jobs[job.ID]; ok {
		delete(s.active, stored.FileUUID)
		delete(s.jobs, job.ID)
	}

	return nil
}

// DeadLetters возвращает задачи, исчерпавшие попытки
func (s *MemoryStore) DeadLetters() []domain.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.DeadLetter, len(s.letters))
	copy(out, s.letters)
	return out
}

// Pending возвращает количество активных задач
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

var _ JobStore = (*MemoryStore)(nil)
