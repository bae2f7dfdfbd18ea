package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
)

func TestClarificationCacheTakeOnce(t *testing.T) {
	ctx := context.Background()
	c := NewClarificationCache(4, time.Minute, clock.NewFake(time.Now()))

	require.NoError(t, c.Put(ctx, "u1:abc", "pay john sometime today"))
	text, err := c.Take(ctx, "u1:abc")
	require.NoError(t, err)
	assert.Equal(t, "pay john sometime today", text)

	_, err = c.Take(ctx, "u1:abc")
	assert.ErrorIs(t, err, domain.ErrClarificationNotFound)

	assert.ErrorIs(t, c.Put(ctx, "", "x"), domain.ErrInvalidPayload)
}

func TestClarificationCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	c := NewClarificationCache(4, time.Minute, clk)

	require.NoError(t, c.Put(ctx, "a", "first"))
	clk.Advance(30 * time.Second)
	require.NoError(t, c.Put(ctx, "b", "second"))
	clk.Advance(30 * time.Second)

	_, err := c.Take(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrClarificationNotFound)
	assert.Equal(t, 1, c.Len())

	text, err := c.Take(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestClarificationCacheCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewClarificationCache(2, time.Hour, clock.NewFake(time.Now()))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Put(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)))
	}
	assert.Equal(t, 2, c.Len())
	_, err := c.Take(ctx, "k0")
	assert.ErrorIs(t, err, domain.ErrClarificationNotFound)

	require.NoError(t, c.Put(ctx, "k1", "replaced"))
	text, err := c.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "replaced", text)

	require.NoError(t, c.Delete(ctx, "k2"))
	assert.Equal(t, 0, c.Len())
}
