package store

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
)

// SnapshotObserver adapts a RecordStore into a RoundObserver: every
// successful round is written as an iteration, and the parent search
// record tracks the latest status and answer.
type SnapshotObserver struct {
	store    schemas.RecordStore
	searchID string
}

// NewSnapshotObserver binds an observer to an existing search record.
func NewSnapshotObserver(recordStore schemas.RecordStore, searchID string) *SnapshotObserver {
	return &SnapshotObserver{store: recordStore, searchID: searchID}
}

// ObserveRound persists the snapshot and advances the search record.
func (o *SnapshotObserver) ObserveRound(ctx context.Context, snapshot schemas.RoundSnapshot) error {
	err := o.store.SaveIteration(ctx, schemas.Iteration{
		SearchID:      o.searchID,
		Round:         snapshot.Round,
		WorkspaceText: snapshot.WorkspaceText,
		ToolRecords:   snapshot.ToolRecords,
		CreatedAt:     snapshot.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("saving iteration %d: %w", snapshot.Round, err)
	}

	if err := o.store.UpdateSearch(ctx, o.searchID, snapshot.Status, snapshot.Answer); err != nil {
		return fmt.Errorf("updating search record: %w", err)
	}
	return nil
}
