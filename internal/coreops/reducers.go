package coreops

import (
	"context"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func reducerOps() []ops.Op {
	return []ops.Op{
		reducer("number-sum", "sum of present numbers; empty sums to 0", ir.NumberType, func(nums []float64) (ir.Value, error) {
			total := 0.0
			for _, n := range nums {
				total += n
			}
			return ir.Num(total), nil
		}),
		reducer("number-min", "smallest present number", ir.NewMaybe(ir.NumberType), func(nums []float64) (ir.Value, error) {
			i := extremeIndex(nums, func(a, b float64) bool { return a < b })
			if i < 0 {
				return nil, ops.ErrAbsent
			}
			return ir.Num(nums[i]), nil
		}),
		reducer("number-max", "largest present number", ir.NewMaybe(ir.NumberType), func(nums []float64) (ir.Value, error) {
			i := extremeIndex(nums, func(a, b float64) bool { return a > b })
			if i < 0 {
				return nil, ops.ErrAbsent
			}
			return ir.Num(nums[i]), nil
		}),
		reducer("number-avg", "mean of present numbers", ir.NewMaybe(ir.NumberType), func(nums []float64) (ir.Value, error) {
			if len(nums) == 0 {
				return nil, ops.ErrAbsent
			}
			total := 0.0
			for _, n := range nums {
				total += n
			}
			return ir.Num(total / float64(len(nums))), nil
		}),
		argReducer("number-argmax", "index of the largest number", func(a, b float64) bool { return a > b }),
		argReducer("number-argmin", "index of the smallest number", func(a, b float64) bool { return a < b }),
	}
}

var numberListType = ir.NewList(ir.NewMaybe(ir.NumberType))

func reducer(name, desc string, ret ir.Type, f func([]float64) (ir.Value, error)) ops.Op {
	return ops.LiftBasicDimDown(ops.Def{
		Name:        name,
		Description: desc,
		Args:        []ops.Arg{{Name: "numbers", Type: numberListType}},
		ReturnType:  constType(ret),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			nums, _, err := presentNumbers(args.First())
			if err != nil {
				return nil, err
			}
			return f(nums)
		},
	})
}

// argReducer returns the position in the original list, counting absent
// elements.
func argReducer(name, desc string, better func(a, b float64) bool) ops.Op {
	return ops.LiftBasicDimDown(ops.Def{
		Name:        name,
		Description: desc,
		Args:        []ops.Arg{{Name: "numbers", Type: numberListType}},
		ReturnType:  constType(ir.NewMaybe(ir.NumberType)),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			nums, positions, err := presentNumbers(args.First())
			if err != nil {
				return nil, err
			}
			i := extremeIndex(nums, better)
			if i < 0 {
				return nil, ops.ErrAbsent
			}
			return ir.Num(positions[i]), nil
		},
	})
}

// presentNumbers detags the elements of a list and drops absent ones,
// returning each kept number's original position.
func presentNumbers(v ir.Value) ([]float64, []int, error) {
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected a list of numbers, got %s", ops.ErrTypeMismatch, ir.ValueString(v))
	}
	nums := make([]float64, 0, len(arr))
	positions := make([]int, 0, len(arr))
	for i, e := range arr {
		switch n := ir.Detag(e).(type) {
		case ir.Null:
			continue
		case ir.Num:
			nums = append(nums, float64(n))
			positions = append(positions, i)
		default:
			return nil, nil, fmt.Errorf("%w: element %d is %s", ops.ErrTypeMismatch, i, ir.ValueString(e))
		}
	}
	return nums, positions, nil
}

// extremeIndex returns the first index whose value beats every other, or -1
// for an empty slice.
func extremeIndex(nums []float64, better func(a, b float64) bool) int {
	best := -1
	for i, n := range nums {
		if best < 0 || better(n, nums[best]) {
			best = i
		}
	}
	return best
}
