// Package ir provides the foundational graph representation for opgraph:
// types, values, expression nodes and variable stacks.
//
// This package contains data definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Type and Value are sealed interfaces with explicit discriminants, never
//     reflection-based
//   - Union members are deduplicated structurally on construction
//   - The nesting of Tagged values mirrors the nesting of Tagged types exactly
//   - Nodes are immutable; refinement always builds new nodes
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only serialization
//     used for keys and digests
package ir
