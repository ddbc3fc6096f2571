package listops

import (
	"context"

	"github.com/roach88/opgraph/internal/coreops"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func joinOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "join",
		Description: "joins two lists on joinFn1(row1) = joinFn2(row2)",
		Args: []ops.Arg{
			{Name: "arr1", Type: listArg},
			{Name: "arr2", Type: listArg},
			{Name: "joinFn1", Type: fnArg},
			{Name: "joinFn2", Type: fnArg},
			{Name: "alias1", Type: ir.StringType, Const: true},
			{Name: "alias2", Type: ir.StringType, Const: true},
			{Name: "leftOuter", Type: ir.BooleanType, Const: true},
			{Name: "rightOuter", Type: ir.BooleanType, Const: true},
		},
		ReturnType: joinType,
		Resolve:    resolveJoin,
		FunctionInputs: map[string]ops.FunctionInputsFunc{
			"joinFn1": rowInputs("arr1"),
			"joinFn2": rowInputs("arr2"),
		},
		FunctionRows: map[string]string{"joinFn1": "arr1", "joinFn2": "arr2"},
	})
}

func joinType(in ops.ArgTypes) ir.Type {
	alias1 := constString(in.Get("alias1"), "alias1")
	alias2 := constString(in.Get("alias2"), "alias2")
	leftOuter, rightOuter := constBool(in.Get("leftOuter")), constBool(in.Get("rightOuter"))
	key1, key2 := fnOutput(in.Get("joinFn1")), fnOutput(in.Get("joinFn2"))

	return overListType(in.Get("arr1"), func(_ ir.Type, l1 ir.List) ir.Type {
		return overListType(in.Get("arr2"), func(_ ir.Type, l2 ir.List) ir.Type {
			row1, row2 := l1.Object, l2.Object
			keyType := key1
			if rightOuter {
				row1 = ir.NewMaybe(row1)
				keyType = ir.NewUnion(key1, key2)
			}
			if leftOuter {
				row2 = ir.NewMaybe(row2)
			}
			row := ir.NewDict(ir.P(alias1, row1), ir.P(alias2, row2))
			return ir.NewList(ir.NewTagged(ir.NewDict(ir.P(coreops.TagJoinObj, keyType)), row))
		})
	})
}

func resolveJoin(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
	fn1, err := funcArg(args, "joinFn1")
	if err != nil {
		return nil, err
	}
	fn2, err := funcArg(args, "joinFn2")
	if err != nil {
		return nil, err
	}
	alias1, _ := args.Get("alias1").(ir.Str)
	alias2, _ := args.Get("alias2").(ir.Str)
	leftOuter := ir.Truthy(args.Get("leftOuter"))
	rightOuter := ir.Truthy(args.Get("rightOuter"))

	return overListValue(ctx, args.Get("arr1"), func(ctx context.Context, arr1 ir.Array, tags1 []ir.Value) (ir.Value, error) {
		return overListValue(ctx, args.Get("arr2"), func(ctx context.Context, arr2 ir.Array, tags2 []ir.Value) (ir.Value, error) {
			rows1 := make(ir.Array, len(arr1))
			for i, e := range arr1 {
				rows1[i] = distribute(e, tags1)
			}
			rows2 := make(ir.Array, len(arr2))
			for i, e := range arr2 {
				rows2[i] = distribute(e, tags2)
			}
			keys1, err := applyFn(ctx, c, fn1, rows1)
			if err != nil {
				return nil, err
			}
			keys2, err := applyFn(ctx, c, fn2, rows2)
			if err != nil {
				return nil, err
			}

			index := make(map[string][]int)
			for j, k := range keys2 {
				if ir.IsNull(k) {
					continue
				}
				sk, err := SafeKey(k)
				if err != nil {
					return nil, err
				}
				index[sk] = append(index[sk], j)
			}

			joined := func(r1, r2, key ir.Value) ir.Value {
				return ir.WithTag(ir.Object{coreops.TagJoinObj: key}, ir.Object{string(alias1): r1, string(alias2): r2})
			}

			out := ir.Array{}
			matched2 := make([]bool, len(rows2))
			for i, k := range keys1 {
				var matches []int
				if !ir.IsNull(k) {
					sk, err := SafeKey(k)
					if err != nil {
						return nil, err
					}
					matches = index[sk]
				}
				for _, j := range matches {
					matched2[j] = true
					out = append(out, joined(arr1[i], arr2[j], k))
				}
				if len(matches) == 0 && leftOuter {
					out = append(out, joined(arr1[i], ir.Null{}, k))
				}
			}
			if rightOuter {
				for j, r2 := range arr2 {
					if !matched2[j] {
						out = append(out, joined(ir.Null{}, r2, keys2[j]))
					}
				}
			}
			return out, nil
		})
	})
}

func joinAllOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "joinAll",
		Description: "joins n lists on joinFn(row), merging matched rows column-wise",
		Args: []ops.Arg{
			{Name: "arrs", Type: ir.NewMaybe(ir.NewList(listArg))},
			{Name: "joinFn", Type: fnArg},
			{Name: "outer", Type: ir.BooleanType, Const: true},
		},
		ReturnType: joinAllType,
		Resolve:    resolveJoinAll,
		FunctionInputs: map[string]ops.FunctionInputsFunc{
			"joinFn": func(in ops.ArgTypes) []ir.Prop {
				return []ir.Prop{ir.P("row", rowType(rowType(in.Get("arrs")))), ir.P("index", ir.NumberType)}
			},
		},
	})
}

func joinAllType(in ops.ArgTypes) ir.Type {
	keyType := fnOutput(in.Get("joinFn"))
	outer := constBool(in.Get("outer"))
	tag := ir.NewDict(ir.P(coreops.TagJoinKey, ir.StringType), ir.P(coreops.TagJoinObj, keyType))

	return overListType(in.Get("arrs"), func(inner ir.Type, _ ir.List) ir.Type {
		return ir.NewList(ir.NewTagged(tag, mergedRowType(rowType(inner), outer)))
	})
}

// mergedRowType gives each property of the row type a list type over the
// joined inputs. Properties missing from some row shape, and every property
// of an outer join, may be absent. Each row shape's tags carry over to the
// property values it contributes.
func mergedRowType(row ir.Type, outer bool) ir.Type {
	var dicts []ir.TypedDict
	var tags []ir.Type
	for _, m := range unionMembers(row) {
		if d, ok := ir.DetagType(m).(ir.TypedDict); ok {
			dicts = append(dicts, d)
			tags = append(tags, rowTagType(m))
		}
	}
	if len(dicts) == 0 {
		return ir.NewDict()
	}

	var keys []string
	seen := make(map[string]bool)
	for _, d := range dicts {
		for _, k := range d.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	props := make([]ir.Prop, len(keys))
	for i, k := range keys {
		var members []ir.Type
		if outer {
			members = append(members, ir.NoneType)
		}
		for j, d := range dicts {
			t, ok := d.Lookup(k)
			switch {
			case !ok:
				t = ir.NoneType
			case tags[j] != nil:
				t = ir.NewTagged(tags[j], t)
			}
			members = append(members, t)
		}
		props[i] = ir.P(k, ir.NewList(ir.NewUnion(members...)))
	}
	return ir.NewDict(props...)
}

// rowTagType returns the outer tag chain of t, or nil when t is untagged.
func rowTagType(t ir.Type) ir.Type {
	if tt, ok := t.(ir.Tagged); ok {
		return tt.Tag
	}
	return nil
}

// unionMembers splits a type into alternatives; absence becomes a none
// member.
func unionMembers(t ir.Type) []ir.Type {
	switch tt := t.(type) {
	case ir.Union:
		return tt.Members
	case ir.Maybe:
		return append(unionMembers(tt.Inner), ir.NoneType)
	}
	return []ir.Type{t}
}

type joinGroup struct {
	raw  ir.Value
	rows [][]ir.Value
}

func resolveJoinAll(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
	fn, err := funcArg(args, "joinFn")
	if err != nil {
		return nil, err
	}
	outer := ir.Truthy(args.Get("outer"))

	return overListValue(ctx, args.Get("arrs"), func(ctx context.Context, lists ir.Array, tags []ir.Value) (ir.Value, error) {
		n := len(lists)
		var order []string
		groups := make(map[string]*joinGroup)

		for i, list := range lists {
			rows, err := elements(list)
			if err != nil {
				return nil, err
			}
			tagged := make(ir.Array, len(rows))
			for j, r := range rows {
				tagged[j] = distribute(r, tags)
			}
			keys, err := applyFn(ctx, c, fn, tagged)
			if err != nil {
				return nil, err
			}
			for j, k := range keys {
				if ir.IsNull(k) {
					continue
				}
				sk, err := SafeKey(k)
				if err != nil {
					return nil, err
				}
				g, ok := groups[sk]
				if !ok {
					g = &joinGroup{raw: k, rows: make([][]ir.Value, n)}
					groups[sk] = g
					order = append(order, sk)
				}
				g.rows[i] = append(g.rows[i], tagged[j])
			}
		}

		out := ir.Array{}
		for _, sk := range order {
			g := groups[sk]
			complete := true
			for i := range g.rows {
				if len(g.rows[i]) == 0 {
					if !outer {
						complete = false
						break
					}
					g.rows[i] = []ir.Value{ir.Null{}}
				}
			}
			if !complete {
				continue
			}
			tag := ir.Object{coreops.TagJoinKey: ir.Str(sk), coreops.TagJoinObj: g.raw}
			for _, combo := range crossProduct(g.rows) {
				out = append(out, ir.WithTag(tag, mergeRows(combo)))
			}
		}
		return out, nil
	})
}

// crossProduct enumerates one row per input, in input order.
func crossProduct(rows [][]ir.Value) [][]ir.Value {
	combos := [][]ir.Value{{}}
	for _, options := range rows {
		next := make([][]ir.Value, 0, len(combos)*len(options))
		for _, prefix := range combos {
			for _, r := range options {
				combo := make([]ir.Value, len(prefix)+1)
				copy(combo, prefix)
				combo[len(prefix)] = r
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

// mergeRows builds one dict whose properties list each input row's value.
// A tagged row's tags move onto the values it contributes.
func mergeRows(combo []ir.Value) ir.Object {
	merged := make(ir.Object)
	for _, r := range combo {
		obj, ok := ir.Detag(r).(ir.Object)
		if !ok {
			continue
		}
		for k := range obj {
			if _, done := merged[k]; done {
				continue
			}
			col := make(ir.Array, len(combo))
			for i, other := range combo {
				col[i] = ir.Null{}
				if o, ok := ir.Detag(other).(ir.Object); ok {
					if v, found := o[k]; found {
						col[i] = v
						if tv, tagged := other.(ir.TaggedValue); tagged {
							col[i] = ir.WithTag(tv.Tag, v)
						}
					}
				}
			}
			merged[k] = col
		}
	}
	return merged
}
