//go:build integration

package locker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pglocker "github.com/alanyang/lead-pipeline/internal/adapter/postgres/locker"
	portlocker "github.com/alanyang/lead-pipeline/internal/port/locker"
	"github.com/alanyang/lead-pipeline/internal/testutil"
)

func TestLocker_SerialisesSameKey(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	l := pglocker.New(pool)
	key := portlocker.TenantKey(uuid.New())

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), key, func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestLocker_ReleasesOnError(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	l := pglocker.New(pool)
	key := portlocker.TenantKey(uuid.New())

	err := l.WithLock(context.Background(), key, func(context.Context) error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.WithLock(ctx, key, func(context.Context) error { return nil }))
}
