package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/imagemill/imagemill/internal/model"
	"github.com/stretchr/testify/require"
)

func page(total int) *model.ListResponse {
	return &model.ListResponse{Items: []model.Job{}, Page: 1, Limit: 20, Total: total}
}

func TestMemory_HitWithinTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	c.Put(ctx, "owner-a", page(3))

	got, ok := c.Get(ctx, "owner-a")
	require.True(t, ok)
	require.Equal(t, 3, got.Total)
}

func TestMemory_MissAfterExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put(ctx, "owner-a", page(1))

	// one second past the TTL
	c.now = func() time.Time { return now.Add(31 * time.Second) }

	_, ok := c.Get(ctx, "owner-a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "expired entry must be evicted on access")
}

func TestMemory_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	c.Put(ctx, "owner-a", page(1))
	c.Invalidate(ctx, "owner-a")

	_, ok := c.Get(ctx, "owner-a")
	require.False(t, ok)
}

func TestMemory_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	c.Put(ctx, "owner-a", page(1))
	c.Put(ctx, "owner-b", page(2))
	c.Invalidate(ctx, "owner-a")

	_, ok := c.Get(ctx, "owner-a")
	require.False(t, ok)

	got, ok := c.Get(ctx, "owner-b")
	require.True(t, ok)
	require.Equal(t, 2, got.Total)
}

func TestMemory_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	c.Put(ctx, "owner-a", page(1))
	c.Put(ctx, "owner-a", page(9))

	got, ok := c.Get(ctx, "owner-a")
	require.True(t, ok)
	require.Equal(t, 9, got.Total)
}

// Documents the unbounded-growth property: nothing evicts live entries for
// distinct owners.
func TestMemory_GrowsWithOwnerCount(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(30 * time.Second)

	for i := 0; i < 1000; i++ {
		c.Put(ctx, fmt.Sprintf("owner-%d", i), page(i))
	}

	require.Equal(t, 1000, c.Len())
}
