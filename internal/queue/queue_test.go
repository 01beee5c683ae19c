package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Workers:        2,
		MaxAttempts:    3,
		BaseDelay:      10 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		LockTTL:        time.Second,
		ProcessTimeout: time.Second,
	}
}

// waitFor опрашивает условие, пока оно не выполнится или не выйдет время
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPoolProcessesJob(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	var handled []uuid.UUID
	handler := func(_ context.Context, fileUUID uuid.UUID) error {
		mu.Lock()
		handled = append(handled, fileUUID)
		mu.Unlock()
		return nil
	}

	pool, err := NewPool(store, handler, nil, testConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	fileUUID := uuid.New()
	require.NoError(t, pool.Enqueue(context.Background(), fileUUID))

	waitFor(t, func() bool { return store.Pending() == 0 }, "job was not completed")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 1)
	assert.Equal(t, fileUUID, handled[0])
	assert.Empty(t, store.DeadLetters())
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	attempts := 0
	handler := func(_ context.Context, _ uuid.UUID) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	}

	pool, err := NewPool(store, handler, nil, testConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(context.Background(), uuid.New()))

	waitFor(t, func() bool { return store.Pending() == 0 }, "job was not completed")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
	assert.Empty(t, store.DeadLetters())
}

func TestPoolDeadLettersAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	attempts := 0
	handler := func(_ context.Context, _ uuid.UUID) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("always fails")
	}

	var exhausted []uuid.UUID
	onExhausted := func(_ context.Context, fileUUID uuid.UUID, _ error) {
		mu.Lock()
		exhausted = append(exhausted, fileUUID)
		mu.Unlock()
	}

	pool, err := NewPool(store, handler, onExhausted, testConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	fileUUID := uuid.New()
	require.NoError(t, pool.Enqueue(context.Background(), fileUUID))

	waitFor(t, func() bool { return len(store.DeadLetters()) == 1 }, "job was not dead-lettered")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
	require.Len(t, exhausted, 1)
	assert.Equal(t, fileUUID, exhausted[0])

	letter := store.DeadLetters()[0]
	assert.Equal(t, fileUUID, letter.FileUUID)
	assert.Equal(t, 3, letter.Attempts)
	assert.Contains(t, letter.Error, "always fails")
	assert.Equal(t, 0, store.Pending())
}

func TestPoolPermanentErrorSkipsRetries(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	attempts := 0
	handler := func(_ context.Context, fileUUID uuid.UUID) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return fmt.Errorf("%w: file %s does not exist", ErrPermanent, fileUUID)
	}

	pool, err := NewPool(store, handler, nil, testConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(context.Background(), uuid.New()))

	waitFor(t, func() bool { return len(store.DeadLetters()) == 1 }, "job was not dead-lettered")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	store := NewMemoryStore()

	handler := func(_ context.Context, _ uuid.UUID) error {
		panic("handler exploded")
	}

	pool, err := NewPool(store, handler, nil, testConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, pool.Enqueue(context.Background(), uuid.New()))

	// Паника превращается в обычную ошибку и задача уходит в разбор
	waitFor(t, func() bool { return len(store.DeadLetters()) == 1 }, "job was not dead-lettered")
	assert.Contains(t, store.DeadLetters()[0].Error, "handler panic")
}

func TestPoolEnqueueIsIdempotent(t *testing.T) {
	store := NewMemoryStore()

	fileUUID := uuid.New()
	require.NoError(t, store.Enqueue(context.Background(), fileUUID))
	require.NoError(t, store.Enqueue(context.Background(), fileUUID))

	assert.Equal(t, 1, store.Pending())
}

func TestPoolStartTwice(t *testing.T) {
	pool, err := NewPool(NewMemoryStore(), func(context.Context, uuid.UUID) error { return nil }, nil, testConfig())
	require.NoError(t, err)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.Error(t, pool.Start(context.Background()))
}

func TestMemoryStoreClaimRespectsRunAt(t *testing.T) {
	store := NewMemoryStore()
	fileUUID := uuid.New()
	require.NoError(t, store.Enqueue(context.Background(), fileUUID))

	job, err := store.Claim(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.Attempts)

	// Пока задача залочена или отложена, Claim ничего не отдает
	again, err := store.Claim(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, store.Fail(context.Background(), job.ID, "transient", time.Now().Add(time.Hour)))
	deferred, err := store.Claim(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, deferred)
}
