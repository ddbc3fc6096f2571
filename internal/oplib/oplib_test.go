package oplib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/cache"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(cache.New())
	require.NoError(t, err)

	for _, name := range []string{"number-add", "map", "joinAll", "run-history", "file-table"} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, "missing %s", name)
	}
}

func TestNewRegistryNilCache(t *testing.T) {
	reg := MustNewRegistry(nil)
	assert.Nil(t, reg.Cache())
	assert.NotEmpty(t, reg.Ops())
}
