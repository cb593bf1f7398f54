package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepClock struct{ now time.Time }

func (s *stepClock) Now() time.Time { return s.now }

func TestCache(t *testing.T) {
	clk := &stepClock{now: time.Unix(1_750_000_000, 0)}
	c := NewWithClock[string](time.Minute, time.Hour, clk)
	defer c.Stop()

	t.Run("Miss", func(t *testing.T) {
		v, ok := c.Get("absent")
		assert.False(t, ok)
		assert.Equal(t, "", v)
	})

	t.Run("HitWithinTTL", func(t *testing.T) {
		c.Set("wallet", "power")
		clk.now = clk.now.Add(59 * time.Second)

		v, ok := c.Get("wallet")
		assert.True(t, ok)
		assert.Equal(t, "power", v)
	})

	t.Run("ExpiresAfterTTL", func(t *testing.T) {
		clk.now = clk.now.Add(2 * time.Second)

		_, ok := c.Get("wallet")
		assert.False(t, ok)
		assert.Equal(t, 1, c.Size())

		assert.Equal(t, 1, c.RemoveExpired())
		assert.Equal(t, 0, c.Size())
	})

	t.Run("DeleteAndClear", func(t *testing.T) {
		c.Set("a", "1")
		c.Set("b", "2")
		c.Delete("a")
		assert.Equal(t, 1, c.Size())

		c.Clear()
		assert.Equal(t, 0, c.Size())
	})

	t.Run("StopTwice", func(t *testing.T) {
		c.Stop()
		c.Stop()
	})
}

func TestCacheStructValues(t *testing.T) {
	type result struct{ Power float64 }

	c := New[*result](time.Minute, 0)
	defer c.Stop()

	c.Set("k", &result{Power: 3.94})
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.InDelta(t, 3.94, v.Power, 1e-9)
	assert.Equal(t, time.Minute, c.TTL())
}
