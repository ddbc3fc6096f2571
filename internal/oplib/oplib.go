// Package oplib assembles the operation library shipped with opgraph.
package oplib

import (
	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/coreops"
	"github.com/roach88/opgraph/internal/domain"
	"github.com/roach88/opgraph/internal/listops"
	"github.com/roach88/opgraph/internal/ops"
)

// NewRegistry returns a registry holding the core, list and domain
// operations. c may be nil to disable return-type memoization.
func NewRegistry(c *cache.Cache) (*ops.Registry, error) {
	reg := ops.NewRegistry(c)
	for _, register := range []func(*ops.Registry) error{
		coreops.Register,
		listops.Register,
		domain.Register,
	} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(c *cache.Cache) *ops.Registry {
	reg, err := NewRegistry(c)
	if err != nil {
		panic(err)
	}
	return reg
}
