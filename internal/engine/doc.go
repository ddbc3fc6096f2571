// Package engine executes and refines expression graphs.
//
// Execution walks a node tree against an ops.Registry. Each call to
// Engine.Execute is one query: it gets a fresh ForwardGraph, identified by
// a query ID, that memoizes the value of every (node, stack) pair it
// evaluates and is discarded when the query returns. Sibling inputs are
// evaluated concurrently and reassembled in declaration order.
//
// Refinement replaces provisional node types with types that can only be
// learned by looking at data. Engine.Refine rebuilds the node tree bottom
// up: inputs first, then the return type from the refined input types, then
// the operation's own refiner. Operations whose output type depends on
// remote content delegate to a paired type-only operation that is executed
// over a bounded sample of the first input. Function bodies that contain
// such operations are refined once per sampled row.
//
// Refinement never mutates its input and is idempotent: refining an
// already refined node yields the same types.
package engine
