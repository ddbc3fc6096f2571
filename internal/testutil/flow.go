package testutil

// StaticQueryIDGenerator returns the same query ID every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence and panics when
// they run out, this generator never runs out. The scenario harness uses it
// so golden output never depends on how many queries a scenario ran.
//
// Thread-safety: StaticQueryIDGenerator is stateless and safe for concurrent use.
type StaticQueryIDGenerator struct {
	id string
}

// NewStaticQueryIDGenerator creates a generator returning id.
//
// If id is empty, Generate() returns "test-query".
func NewStaticQueryIDGenerator(id string) *StaticQueryIDGenerator {
	if id == "" {
		id = "test-query"
	}
	return &StaticQueryIDGenerator{id: id}
}

// Generate returns the static query ID.
//
// Implements engine.QueryIDGenerator.
func (g *StaticQueryIDGenerator) Generate() string {
	return g.id
}
