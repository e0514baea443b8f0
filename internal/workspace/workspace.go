// Package workspace implements the agent's bounded external memory. The
// model never sees raw state; it sees the text rendering produced by
// ToText and mutates it only through the structured updates it emits each
// round.
package workspace

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
)

// newBlockID generates workspace block ids. Swappable so tests can pin
// deterministic ids.
var newBlockID = randomBlockID

func randomBlockID() string {
	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = byte('a' + rand.Intn(26))
	}
	return fmt.Sprintf("%s-%03d", letters, rand.Intn(1000))
}

// Workspace holds the agent's status, its memory blocks in insertion
// order, and the final answer once one is supplied. It is not safe for
// concurrent use; the agent loop owns it single-threaded.
type Workspace struct {
	status string
	blocks map[string]string
	order  []string
	answer *string
}

// New returns an empty workspace in the in-progress state.
func New() *Workspace {
	return &Workspace{
		status: schemas.StatusInProgress,
		blocks: make(map[string]string),
	}
}

// NewFromState rehydrates a workspace from a persisted snapshot, keeping
// block order. Used to seed a continuation run with a prior run's memory.
func NewFromState(state schemas.WorkspaceState) *Workspace {
	ws := New()
	if state.Status != "" {
		ws.status = state.Status
	}
	ws.answer = state.Answer

	order := state.Order
	if len(order) == 0 {
		for id := range state.Blocks {
			order = append(order, id)
		}
	}
	for _, id := range order {
		content, ok := state.Blocks[id]
		if !ok {
			continue
		}
		ws.blocks[id] = content
		ws.order = append(ws.order, id)
	}
	return ws
}

// Update applies one round's worth of model-issued mutations. An empty
// status means the model omitted it and the workspace resets to
// in-progress rather than carrying the previous value forward. Deletes of
// unknown ids and unrecognized operations are ignored; a malfunctioning
// model must not be able to wedge the loop.
func (w *Workspace) Update(status string, ops []schemas.MemoryOp, answer *string) {
	if status == "" {
		status = schemas.StatusInProgress
	}
	w.status = status

	for _, op := range ops {
		switch op.Operation {
		case schemas.MemoryOpAdd:
			w.addBlock(op.Content)
		case schemas.MemoryOpDelete:
			w.deleteBlock(op.ID)
		}
	}

	if answer != nil {
		w.answer = answer
	}
}

func (w *Workspace) addBlock(content string) {
	id := newBlockID()
	for {
		if _, exists := w.blocks[id]; !exists {
			break
		}
		id = newBlockID()
	}
	w.blocks[id] = content
	w.order = append(w.order, id)
}

func (w *Workspace) deleteBlock(id string) {
	if _, exists := w.blocks[id]; !exists {
		return
	}
	delete(w.blocks, id)
	for i, existing := range w.order {
		if existing == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// IsDone reports whether the workspace has left the in-progress state.
// Any other status string, not just DONE, counts as terminal; the model
// is free to invent statuses and the loop must still halt.
func (w *Workspace) IsDone() bool {
	return w.status != schemas.StatusInProgress
}

// Status returns the current status string.
func (w *Workspace) Status() string {
	return w.status
}

// Answer returns the final answer, or nil when none has been supplied.
func (w *Workspace) Answer() *string {
	return w.answer
}

// ToText renders the workspace exactly as the model sees it in the
// prompt: the status line, then every memory block as an id-tagged
// element, or a placeholder when no blocks exist.
func (w *Workspace) ToText() string {
	var sb strings.Builder
	sb.WriteString("Status: ")
	sb.WriteString(w.status)
	sb.WriteString("\nMemory: \n")
	if len(w.order) == 0 {
		sb.WriteString("... no memory blocks ...\n")
		return sb.String()
	}
	for _, id := range w.order {
		sb.WriteString(fmt.Sprintf("<%s>%s</%s>\n", id, w.blocks[id], id))
	}
	return sb.String()
}

// blockLine matches one rendered memory block, anchored to a full line.
var blockLine = regexp.MustCompile(`^<([a-z]{3}-[0-9]{3})>(.*)</([a-z]{3}-[0-9]{3})>$`)

// ParseText reverses ToText, rebuilding a snapshot from the rendered
// form. This is what lets a continuation run seed its workspace from a
// persisted iteration, which stores only the text the model saw. Lines
// that do not match the block shape are skipped.
func ParseText(text string) (schemas.WorkspaceState, error) {
	state := schemas.WorkspaceState{
		Status: schemas.StatusInProgress,
		Blocks: make(map[string]string),
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "Status: ") {
		return state, fmt.Errorf("workspace text missing status line")
	}
	state.Status = strings.TrimPrefix(lines[0], "Status: ")

	for _, line := range lines[1:] {
		match := blockLine.FindStringSubmatch(line)
		if match == nil || match[1] != match[3] {
			continue
		}
		if _, exists := state.Blocks[match[1]]; !exists {
			state.Order = append(state.Order, match[1])
		}
		state.Blocks[match[1]] = match[2]
	}
	return state, nil
}

// State returns a deep-copied snapshot suitable for persistence.
func (w *Workspace) State() schemas.WorkspaceState {
	blocks := make(map[string]string, len(w.blocks))
	for id, content := range w.blocks {
		blocks[id] = content
	}
	order := make([]string, len(w.order))
	copy(order, w.order)

	var answer *string
	if w.answer != nil {
		value := *w.answer
		answer = &value
	}
	return schemas.WorkspaceState{
		Status: w.status,
		Blocks: blocks,
		Order:  order,
		Answer: answer,
	}
}
