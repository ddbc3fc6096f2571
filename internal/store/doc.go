// Package store provides the SQLite-backed backend consulted by domain
// operations.
//
// The store holds:
//   - Projects: named groups of runs
//   - Runs: run metadata and a JSON summary
//   - History: ordered JSON rows logged by a run
//   - Files: paths logged by a run, pointing at content by digest
//   - Blobs: content-addressed file content
//
// The engine only reads (Store implements ops.Backend). Seeding methods
// exist for tests, the scenario harness and the CLI's seed command.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every compiled query ends in ORDER BY ... id COLLATE BINARY ASC
//   - Identical data gives identical results in identical order
//
// Content Addressing
//   - File content is stored once per digest (ir.ContentDigest)
//   - File and table references carry the digest, so parsed content can be
//     memoized by digest
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
