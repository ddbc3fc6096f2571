package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
	"github.com/roach88/opgraph/internal/store"
)

// Backend is an in-memory ops.Backend holding the same sources as the
// SQLite store: projects, runs, history, files and blobs. Queries run
// through queryir.Evaluate.
//
// Backend counts calls so tests can assert how much data an operation
// touched.
//
// Thread-safety: safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	sources map[string][]ir.Object
	blobs   map[string][]byte
	nextID  int

	fetches  atomic.Int64
	contents atomic.Int64
	queries  atomic.Int64

	// ContentErr, when set, is returned by every Content call.
	ContentErr error
}

var _ ops.Backend = (*Backend)(nil)

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		sources: map[string][]ir.Object{},
		blobs:   map[string][]byte{},
	}
}

// NewSeededBackend creates a backend holding a parsed dataset.
func NewSeededBackend(ds store.Dataset) (*Backend, error) {
	b := NewBackend()
	if err := b.Seed(ds); err != nil {
		return nil, err
	}
	return b, nil
}

// MustParseBackend parses YAML dataset text into a backend, panicking on
// error.
func MustParseBackend(yamlText string) *Backend {
	ds, err := store.ParseDataset([]byte(yamlText))
	if err != nil {
		panic(err)
	}
	b, err := NewSeededBackend(ds)
	if err != nil {
		panic(err)
	}
	return b
}

// Seed adds a dataset's projects, runs, history and files.
func (b *Backend) Seed(ds store.Dataset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range ds.Projects {
		pid := p.ProjectID()
		b.add("projects", ir.Object{"id": ir.Str(pid), "name": ir.Str(p.Name)})

		for seq, r := range p.Runs {
			summary, err := ir.FromGo(r.Summary)
			if err != nil {
				return fmt.Errorf("seed run %s: %w", r.ID, err)
			}
			if ir.IsNull(summary) {
				summary = ir.Object{}
			}
			b.add("runs", ir.Object{
				"id":         ir.Str(r.ID),
				"project_id": ir.Str(pid),
				"name":       ir.Str(r.Name),
				"summary":    summary,
				"seq":        ir.Num(seq),
			})

			for step, h := range r.History {
				row, err := ir.FromGo(h)
				if err != nil {
					return fmt.Errorf("seed run %s history %d: %w", r.ID, step, err)
				}
				b.add("history", ir.Object{"run_id": ir.Str(r.ID), "step": ir.Num(step), "row": row})
			}

			for _, f := range r.Files {
				content, err := f.Encode()
				if err != nil {
					return err
				}
				digest := ir.ContentDigest(content)
				b.blobs[digest] = content
				b.add("files", ir.Object{
					"run_id": ir.Str(r.ID),
					"path":   ir.Str(f.Path),
					"digest": ir.Str(digest),
					"size":   ir.Num(len(content)),
				})
			}
		}
	}
	return nil
}

// add appends a row, assigning a numeric id when the row has none.
func (b *Backend) add(source string, row ir.Object) {
	if _, ok := row["id"]; !ok {
		b.nextID++
		row["id"] = ir.Num(b.nextID)
	}
	b.sources[source] = append(b.sources[source], row)
}

// Fetch returns run or file metadata in the store's shape.
func (b *Backend) Fetch(ctx context.Context, ref ir.Ref) (ir.Value, error) {
	b.fetches.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	switch ref.Kind {
	case ir.NameRun:
		for _, run := range b.sources["runs"] {
			if run["id"] != ir.Str(ref.Digest) {
				continue
			}
			return ir.Object{
				"id":      run["id"],
				"name":    run["name"],
				"project": b.projectName(run["project_id"]),
				"summary": run["summary"],
			}, nil
		}
	case ir.NameFile, ir.NameTable:
		for _, f := range b.sources["files"] {
			if f["digest"] == ir.Str(ref.Digest) && f["path"] == ir.Str(ref.Path) {
				return ir.Object{"path": f["path"], "digest": f["digest"], "size": f["size"]}, nil
			}
		}
	}
	return nil, fmt.Errorf("fetch %s %s: %w", ref.Kind, ref.Digest, ops.ErrNotFound)
}

func (b *Backend) projectName(id ir.Value) ir.Value {
	for _, p := range b.sources["projects"] {
		if p["id"] == id {
			return p["name"]
		}
	}
	return ir.Null{}
}

// Content returns the blob addressed by the reference's digest.
func (b *Backend) Content(ctx context.Context, ref ir.Ref) ([]byte, error) {
	b.contents.Add(1)
	if b.ContentErr != nil {
		return nil, b.ContentErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	content, ok := b.blobs[ref.Digest]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", ref.Digest, ops.ErrNotFound)
	}
	return append([]byte(nil), content...), nil
}

// Query evaluates q against the in-memory sources.
func (b *Backend) Query(ctx context.Context, q queryir.Query) ([]ir.Value, error) {
	b.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return queryir.Evaluate(q, func(name string) ([]ir.Object, error) {
		rows, ok := b.sources[name]
		if !ok {
			return nil, fmt.Errorf("no such source %q", name)
		}
		return rows, nil
	})
}

// FetchCalls returns how many times Fetch was called.
func (b *Backend) FetchCalls() int { return int(b.fetches.Load()) }

// ContentCalls returns how many times Content was called.
func (b *Backend) ContentCalls() int { return int(b.contents.Load()) }

// QueryCalls returns how many times Query was called.
func (b *Backend) QueryCalls() int { return int(b.queries.Load()) }

// ResetCalls zeroes the call counters.
func (b *Backend) ResetCalls() {
	b.fetches.Store(0)
	b.contents.Store(0)
	b.queries.Store(0)
}
