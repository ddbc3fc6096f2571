package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/compiler"
	"github.com/roach88/opgraph/internal/engine"
	"github.com/roach88/opgraph/internal/oplib"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/store"
)

// EvalOptions holds flags shared by eval and refine.
type EvalOptions struct {
	*RootOptions
	DataFile    string // dataset seeded before evaluation
	SampleLimit int
	Concurrency int
}

// session wires a store, the operation library, an engine and a compiler
// for one command.
type session struct {
	store    *store.Store
	registry *ops.Registry
	engine   *engine.Engine
	compiler *compiler.Compiler
}

func openSession(ctx context.Context, opts *EvalOptions) (*session, error) {
	log := opts.logger()

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	log.Debug("database ready", "path", opts.Database)

	if opts.DataFile != "" {
		if _, err := seedFile(ctx, st, opts.DataFile); err != nil {
			st.Close()
			return nil, err
		}
		log.Debug("dataset seeded", "path", opts.DataFile)
	}

	c := cache.New()
	reg, err := oplib.NewRegistry(c)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("register operations: %w", err)
	}

	engineOpts := []engine.EngineOption{engine.WithCache(c), engine.WithLogger(log)}
	if opts.SampleLimit > 0 {
		engineOpts = append(engineOpts, engine.WithSampleLimit(opts.SampleLimit))
	}
	if opts.Concurrency > 0 {
		engineOpts = append(engineOpts, engine.WithConcurrency(opts.Concurrency))
	}

	return &session{
		store:    st,
		registry: reg,
		engine:   engine.New(reg, st, engineOpts...),
		compiler: compiler.New(reg),
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// compile reads an expression document, mapping a missing file to a
// command error and an invalid document to a failure.
func (s *session) compile(path string) (*compiler.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("expression file not found: %s", path), err)
	}
	doc, err := s.compiler.CompileFile(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to compile expression", err)
	}
	return doc, nil
}

// seedFile loads a YAML dataset into st and returns it.
func seedFile(ctx context.Context, st *store.Store, path string) (store.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return store.Dataset{}, WrapExitError(ExitCommandError, fmt.Sprintf("dataset file not found: %s", path), err)
	}
	ds, err := store.LoadDataset(path)
	if err != nil {
		return store.Dataset{}, WrapExitError(ExitFailure, "invalid dataset", err)
	}
	if err := st.Seed(ctx, ds); err != nil {
		return store.Dataset{}, WrapExitError(ExitCommandError, "failed to seed dataset", err)
	}
	return ds, nil
}
