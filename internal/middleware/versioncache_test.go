package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVersions struct {
	current int
	calls   int
}

func (c *countingVersions) CheckTokenVersion(_ context.Context, _ uuid.UUID, v int) (bool, error) {
	c.calls++
	return v == c.current, nil
}

func TestCachedVersionChecker(t *testing.T) {
	inner := &countingVersions{current: 1}
	cached := NewCachedVersionChecker(inner, time.Minute)
	id := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cached.CheckTokenVersion(ctx, id, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.calls)

	for i := 0; i < 2; i++ {
		ok, err := cached.CheckTokenVersion(ctx, id, 0)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, inner.calls, "rejections are not cached")
}
