package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/compiler"
	"github.com/roach88/opgraph/internal/engine"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/oplib"
	"github.com/roach88/opgraph/internal/store"
	"github.com/roach88/opgraph/internal/testutil"
)

const (
	// ErrCodeCompile marks a document that failed to compile.
	ErrCodeCompile = "COMPILE"

	// ErrCodeUnknown marks a failure without an evaluation error code.
	ErrCodeUnknown = "ERROR"
)

// Harness evaluates scenarios against a seeded store.
type Harness struct {
	store    *store.Store
	registry *ops.Registry
	engine   *engine.Engine
	compiler *compiler.Compiler
	queryIDs *testutil.StaticQueryIDGenerator
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fresh cache for
// isolation. Execution flow:
//  1. Seed the dataset
//  2. Compile the expression document
//  3. Refine the expression
//  4. Execute the refined expression
//  5. Evaluate assertions
//
// Compile and evaluation failures are recorded in the result; the returned
// error covers setup problems only.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario)
	if err != nil {
		return nil, err
	}

	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed dataset: %w", err)
	}

	result := h.evaluate(ctx, scenario)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) (*Harness, error) {
	c := cache.New()
	reg, err := oplib.NewRegistry(c)
	if err != nil {
		return nil, err
	}

	queryID := scenario.QueryID
	if queryID == "" {
		queryID = DefaultQueryID
	}
	h := &Harness{
		store:    st,
		registry: reg,
		compiler: compiler.New(reg),
		queryIDs: testutil.NewStaticQueryIDGenerator(queryID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	opts := []engine.EngineOption{
		engine.WithCache(c),
		engine.WithQueryIDGenerator(h.queryIDs),
		engine.WithLogger(h.logger),
	}
	if scenario.SampleLimit > 0 {
		opts = append(opts, engine.WithSampleLimit(scenario.SampleLimit))
	}
	h.engine = engine.New(reg, st, opts...)
	return h, nil
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	if err := h.store.Seed(ctx, scenario.Dataset); err != nil {
		return err
	}
	if scenario.DatasetFile == "" {
		return nil
	}
	ds, err := store.LoadDataset(scenario.DatasetFile)
	if err != nil {
		return err
	}
	return h.store.Seed(ctx, ds)
}

func (h *Harness) evaluate(ctx context.Context, scenario *Scenario) *Result {
	result := NewResult(h.queryIDs.Generate())

	var doc *compiler.Document
	var err error
	if scenario.ExprFile != "" {
		doc, err = h.compiler.CompileFile(scenario.ExprFile)
	} else {
		doc, err = h.compiler.CompileString(scenario.Name+".cue", scenario.Expr)
	}
	if err != nil {
		result.ErrorCode = ErrCodeCompile
		result.ErrorMessage = err.Error()
		return result
	}

	refined, err := h.engine.Refine(ctx, doc.Expr, doc.Stack())
	if err != nil {
		recordError(result, err)
		return result
	}
	result.Type = refined.NodeType().String()

	v, err := h.engine.Execute(ctx, refined, doc.Stack())
	if err != nil {
		recordError(result, err)
		return result
	}
	result.Value = v
	return result
}

func recordError(result *Result, err error) {
	result.ErrorCode = ErrCodeUnknown
	var ee *engine.EvalError
	if errors.As(err, &ee) {
		result.ErrorCode = string(ee.Code)
	}
	result.ErrorMessage = err.Error()
}
