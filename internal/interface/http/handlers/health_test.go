package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompositeHealthChecker(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("no checks", func(t *testing.T) {
		status := NewCompositeHealthChecker("v1").Check(context.Background())
		assert.True(t, status.Healthy)
		assert.True(t, status.Ready)
		assert.Equal(t, "v1", status.Version)
	})

	t.Run("all passing", func(t *testing.T) {
		c := NewCompositeHealthChecker("v1")
		c.AddCheck("store", ok)
		c.AddOptionalCheck("redis", ok)

		status := c.Check(context.Background())
		assert.True(t, status.Ready)
		assert.Equal(t, "All checks passed", status.Message)
		assert.Len(t, status.Checks, 2)
	})

	t.Run("required failure", func(t *testing.T) {
		c := NewCompositeHealthChecker("v1")
		c.AddCheck("store", down)
		c.AddOptionalCheck("redis", down)

		status := c.Check(context.Background())
		assert.False(t, status.Ready)
		assert.False(t, status.Healthy)
		assert.Equal(t, "Some checks failed: store, redis", status.Message)
		assert.Equal(t, "connection refused", status.Checks["store"].Message)
		assert.True(t, status.Checks["redis"].Optional)
	})

	t.Run("check timeout", func(t *testing.T) {
		c := NewCompositeHealthChecker("v1")
		c.SetTimeout(10 * time.Millisecond)
		c.AddCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		status := c.Check(context.Background())
		assert.False(t, status.Ready)
		assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
	})
}
