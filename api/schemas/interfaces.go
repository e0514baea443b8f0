package schemas

import "context"

// ReasoningClient sends a single free-text prompt to a reasoning-capable
// model and returns its raw output, exposed reasoning trace included.
// Implementations are stateless between calls; all agent memory lives in
// the workspace and is re-supplied via the prompt every round.
type ReasoningClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Tool is a single web capability the agent can dispatch. The second
// argument carries the agent's task text so tools that compress their
// output (scrape) can rerank against it; tools that don't need it
// (search) ignore it.
type Tool interface {
	Call(ctx context.Context, input, taskContext string) (string, error)
}

// Reranker orders text chunks by relevance to a query and merges the top
// results into one block.
type Reranker interface {
	Rerank(ctx context.Context, text, query string) (string, error)
}

// RoundObserver receives a snapshot after each successfully applied round.
// Implementations must not mutate the snapshot; the agent reuses nothing
// from it after emission.
type RoundObserver interface {
	ObserveRound(ctx context.Context, snapshot RoundSnapshot) error
}

// RecordStore is the generic "get/set search record by id" capability the
// surrounding orchestration layer consumes. The core only ever writes
// through it; reads back are for collaborators reconstructing state.
type RecordStore interface {
	CreateSearch(ctx context.Context, record SearchRecord) error
	GetSearch(ctx context.Context, id string) (SearchRecord, error)
	UpdateSearch(ctx context.Context, id, status string, answer *string) error
	SaveIteration(ctx context.Context, iteration Iteration) error
	ListIterations(ctx context.Context, searchID string) ([]Iteration, error)
}
