package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeWriteOnce(t *testing.T) {
	c := New()
	key := Key(NamespaceTable, "digest-1")

	v, err := c.GetOrCompute(key, func() (any, error) { return "first", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = c.GetOrCompute(key, func() (any, error) { return "second", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", v, "a key's value never changes once computed")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrComputeErrorsNotCached(t *testing.T) {
	c := New()
	key := Key(NamespaceTable, "bad")

	_, err := c.GetOrCompute(key, func() (any, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")

	_, ok := c.Get(key)
	assert.False(t, ok)

	v, err := c.GetOrCompute(key, func() (any, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrComputeConcurrent(t *testing.T) {
	c := New()
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Load(c, Key(NamespaceReturnType, "op", "sig"), func() (string, error) {
				calls.Add(1)
				return "number", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "number", v)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(32))
	v, ok := c.Get(Key(NamespaceReturnType, "op", "sig"))
	assert.True(t, ok)
	assert.Equal(t, "number", v)
}

func TestLoadTypeMismatch(t *testing.T) {
	c := New()
	key := Key(NamespaceTable, "k")
	_, err := c.GetOrCompute(key, func() (any, error) { return 1, nil })
	require.NoError(t, err)

	_, err = Load(c, key, func() (string, error) { return "x", nil })
	assert.Error(t, err)
}

func TestSeparateInstancesIsolated(t *testing.T) {
	a, b := New(), New()
	_, err := a.GetOrCompute("k", func() (any, error) { return 1, nil })
	require.NoError(t, err)

	_, ok := b.Get("k")
	assert.False(t, ok)
}
