package leader

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAcquireIsExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	leaseA, err := Acquire(ctx, client, "dlq-sweeper", "instance-a", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, leaseA)

	leaseB, err := Acquire(ctx, client, "dlq-sweeper", "instance-b", 10*time.Second)
	require.NoError(t, err)
	assert.Nil(t, leaseB)
}

func TestRenewFailsForNonHolder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	leaseA, err := Acquire(ctx, client, "dlq-sweeper", "instance-a", 10*time.Second)
	require.NoError(t, err)

	forged := &Lease{client: client, key: leaseKey("dlq-sweeper"), instanceID: "instance-b"}
	held, err := forged.Renew(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, held)

	held, err = leaseA.Renew(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	leaseA, err := Acquire(ctx, client, "dlq-sweeper", "instance-a", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, leaseA.Release(ctx))

	leaseB, err := Acquire(ctx, client, "dlq-sweeper", "instance-b", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, leaseB)
}

func TestReleaseByNonHolderIsNoop(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	leaseA, err := Acquire(ctx, client, "dlq-sweeper", "instance-a", 10*time.Second)
	require.NoError(t, err)

	forged := &Lease{client: client, key: leaseKey("dlq-sweeper"), instanceID: "instance-b"}
	require.NoError(t, forged.Release(ctx))

	held, err := leaseA.Renew(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, held)
}
