package testutil

// FixedIDGenerator generates the same loop ID every time.
//
// Unlike loop.FixedGenerator which returns IDs in sequence, this generator
// can start any number of loops, so every loop in a scenario shares an ID and
// recorded traces are byte-identical across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed loop ID generator.
//
// If id is empty, Generate() returns "test-loop-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-loop-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements loop.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
