package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client), mr
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := EntityKey("Shell", "abc")
	require.NoError(t, c.Set(ctx, key, []byte(`{"id":"urn:ex:1"}`), DefaultEntityTTL))

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"urn:ex:1"}`, string(val))
}

func TestGetMissReturnsNilNotError(t *testing.T) {
	c, _ := newTestCache(t)
	val, err := c.Get(context.Background(), EntityKey("Shell", "missing"))
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestGetOnUnreachableServerFailsOpen(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "titan:Shell:abc")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDeletePrefixRemovesAllListPages(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, ListKey("Shell", "h1", "c1"), []byte("a"), DefaultListTTL))
	require.NoError(t, c.Set(ctx, ListKey("Shell", "h1", "c2"), []byte("b"), DefaultListTTL))
	require.NoError(t, c.Set(ctx, EntityKey("Shell", "abc"), []byte("c"), DefaultEntityTTL))

	require.NoError(t, c.DeletePrefix(ctx, "titan:list:Shell:h1:"))

	v1, _ := c.Get(ctx, ListKey("Shell", "h1", "c1"))
	v2, _ := c.Get(ctx, ListKey("Shell", "h1", "c2"))
	assert.Nil(t, v1)
	assert.Nil(t, v2)

	entity, err := c.Get(ctx, EntityKey("Shell", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(entity))
}

func TestEntityTTLExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := EntityKey("Shell", "abc")
	require.NoError(t, c.Set(ctx, key, []byte("v"), time.Second))

	mr.FastForward(2 * time.Second)

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, val)
}
