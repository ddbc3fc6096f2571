package ops

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
)

// Constructor builds a typed node for one operation.
type Constructor func(inputs ir.Inputs) (*ir.Output, error)

// Registry maps operation names to operations.
//
// Thread-safety: safe for concurrent use. Registration normally happens
// once at startup.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]Op
	cache *cache.Cache
}

// NewRegistry creates a registry whose operations memoize return types in c.
// A nil cache disables memoization.
func NewRegistry(c *cache.Cache) *Registry {
	return &Registry{ops: make(map[string]Op), cache: c}
}

// Cache returns the cache injected at construction.
func (r *Registry) Cache() *cache.Cache {
	return r.cache
}

// Register adds an operation and returns its node constructor.
func (r *Registry) Register(op Op) (Constructor, error) {
	if op == nil || op.Name() == "" {
		return nil, fmt.Errorf("register: operation must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[op.Name()]; exists {
		return nil, fmt.Errorf("register: operation %q already registered", op.Name())
	}
	if l, ok := op.(*lifted); ok && r.cache != nil {
		l.withCache(r.cache)
	}
	r.ops[op.Name()] = op
	return r.constructor(op), nil
}

// RegisterAll registers every operation, stopping at the first failure.
func (r *Registry) RegisterAll(ops ...Op) error {
	for _, op := range ops {
		if _, err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns a registered operation.
func (r *Registry) Lookup(name string) (Op, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Constructor returns the node constructor for a registered operation.
func (r *Registry) Constructor(name string) (Constructor, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, &ConstructionError{Op: name, Message: "unknown operation"}
	}
	return r.constructor(op), nil
}

// New builds a node for the named operation.
func (r *Registry) New(name string, inputs ...ir.Input) (*ir.Output, error) {
	ctor, err := r.Constructor(name)
	if err != nil {
		return nil, err
	}
	return ctor(inputs)
}

// Ops returns every registered operation sorted by name.
func (r *Registry) Ops() []Op {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Op, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) constructor(op Op) Constructor {
	return func(inputs ir.Inputs) (*ir.Output, error) {
		ordered, err := bindInputs(op, inputs)
		if err != nil {
			return nil, err
		}
		return ir.NewOutput(op.ReturnType(InputTypes(ordered)), op.Name(), ordered), nil
	}
}

// bindInputs checks inputs against the operation's arguments and returns
// them in declaration order.
func bindInputs(op Op, inputs ir.Inputs) (ir.Inputs, error) {
	declared := op.ArgTypes()
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if declared.Get(in.Name) == nil {
			return nil, &ConstructionError{Op: op.Name(), Arg: in.Name, Message: "unknown argument"}
		}
		if seen[in.Name] {
			return nil, &ConstructionError{Op: op.Name(), Arg: in.Name, Message: "duplicate argument"}
		}
		seen[in.Name] = true
	}

	constArgs := make(map[string]bool)
	for _, name := range op.ConstArgs() {
		constArgs[name] = true
	}

	ordered := make(ir.Inputs, 0, len(declared))
	for _, arg := range declared {
		node, ok := inputs.Get(arg.Key)
		if !ok || node == nil {
			return nil, &ConstructionError{Op: op.Name(), Arg: arg.Key, Message: "missing argument"}
		}
		if constArgs[arg.Key] {
			if c, isConst := node.(*ir.ConstNode); !isConst || ir.IsFnNode(c) {
				return nil, &ConstructionError{Op: op.Name(), Arg: arg.Key, Message: "must be a literal"}
			}
		}
		if !acceptsInput(node.NodeType(), arg.Type) {
			return nil, &ConstructionError{
				Op:      op.Name(),
				Arg:     arg.Key,
				Message: fmt.Sprintf("%s is not assignable to %s", node.NodeType(), arg.Type),
			}
		}
		ordered = append(ordered, ir.In(arg.Key, node))
	}
	return ordered, nil
}

// acceptsInput is IsAssignable with two relaxations: an unknown (any)
// input type is provisional and accepted until refinement, and function
// arguments only need to be functions.
func acceptsInput(src, dst ir.Type) bool {
	if ir.IsPlain(src, ir.NameAny) {
		return true
	}
	if _, ok := dst.(ir.Function); ok {
		_, isFn := src.(ir.Function)
		return isFn
	}
	return ir.IsAssignable(src, dst)
}

// InputTypes returns the node types of inputs, in order.
func InputTypes(inputs ir.Inputs) ArgTypes {
	out := make(ArgTypes, len(inputs))
	for i, in := range inputs {
		out[i] = ir.P(in.Name, in.Node.NodeType())
	}
	return out
}
