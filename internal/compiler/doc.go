// Package compiler turns CUE expression documents into expression graphs.
//
// A document has one required field, expr, and an optional vars struct:
//
//	vars: project: "mnist"
//	expr: {
//		op:  "map"
//		arr: {op: "project-runs", project: {var: "project"}}
//		mapFn: {
//			fn:   ["row"]
//			body: {op: "run-name", run: {var: "row"}}
//		}
//	}
//
// Expressions take one of these shapes:
//
//	"text", 1, true, null, [1, 2]   literal
//	{lit: <any value>}              literal, including dicts
//	{ref: {kind, digest, path?}}    reference literal
//	{var: "name"}                   variable from vars or a function parameter
//	{fn: ["row", ...], body: expr}  function literal
//	{op: "name", <arg>: expr, ...}  operation application
//
// Function parameters take the types the enclosing operation declares for
// them. Literals are built with ir.NewLiteral so constant arguments (join
// aliases, dict keys) are visible at construction time.
//
// Uses the CUE SDK's Go API directly; all problems found in a document are
// reported together.
package compiler
