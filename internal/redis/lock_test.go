package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestVeterinarianLockKey(t *testing.T) {
	id := uuid.MustParse("5b0c6c1e-3d47-4e6c-9d8b-2b1b0d1f9a10")
	assert.Equal(t, "lock:vet:5b0c6c1e-3d47-4e6c-9d8b-2b1b0d1f9a10", VeterinarianLockKey(id))
}

func TestWithLockSurfacesRedisErrors(t *testing.T) {
	// nothing listens on this port, so SetNX fails fast
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	locker := NewRedisLocker(client, time.Second, 100*time.Millisecond)

	called := false
	err := locker.WithLock(context.Background(), "lock:test", func(context.Context) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}
