package coreops

import (
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// Tag keys written by list and domain operations.
const (
	TagRun      = "run"
	TagGroupKey = "groupKey"
	TagJoinKey  = "joinKey"
	TagJoinObj  = "joinObj"
)

func tagGetterOps() []ops.Op {
	return []ops.Op{
		ops.LiftTagGetter("tag-run", TagRun, ir.RunType),
		ops.LiftTagGetter("tag-groupKey", TagGroupKey, ir.AnyType),
		ops.LiftTagGetter("tag-joinKey", TagJoinKey, ir.StringType),
		ops.LiftTagGetter("tag-joinObj", TagJoinObj, ir.AnyType),
	}
}
