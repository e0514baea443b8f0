// Package schemas holds the shared data model for the deep search agent:
// the workspace state, the structured actions parsed out of model output,
// and the persistence-facing record types. Keeping these in one leaf
// package lets every layer (tools, agent, store, cmd) agree on the wire
// shapes without import cycles.
package schemas

import (
	"time"
)

// Workspace status values. The model is prompted to report one of these,
// but the agent must tolerate arbitrary strings (see Workspace.IsDone).
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// Tool identifiers the model is allowed to call.
const (
	ToolSearch = "search"
	ToolScrape = "scrape"
)

// MemoryOpType enumerates the mutations the model may request against the
// workspace's memory blocks.
type MemoryOpType string

const (
	MemoryOpAdd    MemoryOpType = "add"
	MemoryOpDelete MemoryOpType = "delete"
)

// MemoryOp is a single block mutation issued by the model. For "add" only
// Content is meaningful (the id is generated server-side); for "delete"
// only ID is. Unrecognized operations are ignored by the workspace.
type MemoryOp struct {
	Operation MemoryOpType `json:"operation"`
	Content   string       `json:"content,omitempty"`
	ID        string       `json:"id,omitempty"`
}

// ToolCall is one tool invocation requested by the model in a round.
type ToolCall struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// ToolRecord pairs a call with the output it produced. A round's records
// are fed verbatim into the next round's prompt and then discarded; they
// are never persisted into the workspace itself.
type ToolRecord struct {
	ToolCall
	Output string `json:"output"`
}

// RoundResponse is the structured payload the agent expects to find inside
// the model's free-text output. ToolCalls is the only required field;
// everything else has a documented default.
type RoundResponse struct {
	StatusUpdate  string     `json:"status_update,omitempty"`
	MemoryUpdates []MemoryOp `json:"memory_updates,omitempty"`
	ToolCalls     []ToolCall `json:"tool_calls"`
	Answer        *string    `json:"answer,omitempty"`
}

// WorkspaceState is the serializable snapshot of a workspace. Blocks maps
// block id to content; Order preserves insertion order so that a rehydrated
// workspace renders identically to the one that was persisted.
type WorkspaceState struct {
	Status string            `json:"status"`
	Blocks map[string]string `json:"blocks"`
	Order  []string          `json:"order,omitempty"`
	Answer *string           `json:"answer"`
}

// SearchResult is one entry returned by the search capability.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RoundSnapshot is emitted after every successfully applied round so that
// collaborators (UI, persistence) can observe progress or reconstruct a
// continuation. It captures the workspace exactly as the next prompt will
// see it.
type RoundSnapshot struct {
	Round         int          `json:"round"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        string       `json:"status"`
	WorkspaceText string       `json:"workspace_text"`
	Answer        *string      `json:"answer,omitempty"`
	ToolRecords   []ToolRecord `json:"tool_records"`
}

// StopReason describes why the agent loop terminated.
type StopReason string

const (
	StopDone              StopReason = "DONE"
	StopRoundLimitReached StopReason = "ROUND_LIMIT_REACHED"
	StopNonLooping        StopReason = "STOPPED_NON_LOOPING"
)

// RunResult is produced when the loop stops.
type RunResult struct {
	Reason    StopReason     `json:"reason"`
	Rounds    int            `json:"rounds"`
	Workspace WorkspaceState `json:"workspace"`
	// Answer is non-nil only when the workspace reached a terminal status
	// and the model supplied one.
	Answer *string `json:"answer,omitempty"`
}

// SearchRecord is the persistence unit for one agent run.
type SearchRecord struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Status    string    `json:"status"`
	Answer    *string   `json:"answer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Iteration is one persisted round snapshot belonging to a search record.
type Iteration struct {
	SearchID      string       `json:"search_id"`
	Round         int          `json:"round"`
	WorkspaceText string       `json:"workspace_text"`
	ToolRecords   []ToolRecord `json:"tool_records"`
	CreatedAt     time.Time    `json:"created_at"`
}
