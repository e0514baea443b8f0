package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
	"github.com/xkilldash9x/deepsearch-cli/internal/store"
)

func TestPrepareSearchRegistersNewRecord(t *testing.T) {
	ctx := context.Background()
	recordStore := store.NewMemoryStore()

	searchID, task, opts, err := prepareSearch(ctx, recordStore, "find the facts", "")
	require.NoError(t, err)
	assert.NotEmpty(t, searchID)
	assert.Equal(t, "find the facts", task)
	assert.Empty(t, opts)

	record, err := recordStore.GetSearch(ctx, searchID)
	require.NoError(t, err)
	assert.Equal(t, "find the facts", record.Task)
	assert.Equal(t, schemas.StatusInProgress, record.Status)
}

func TestPrepareSearchContinuesExistingRecord(t *testing.T) {
	ctx := context.Background()
	recordStore := store.NewMemoryStore()

	now := time.Now().UTC()
	require.NoError(t, recordStore.CreateSearch(ctx, schemas.SearchRecord{
		ID:        "prior",
		Task:      "the original task",
		Status:    schemas.StatusDone,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, recordStore.SaveIteration(ctx, schemas.Iteration{
		SearchID:      "prior",
		Round:         1,
		WorkspaceText: "Status: DONE\nMemory: \n<abc-123>carried fact</abc-123>\n",
		CreatedAt:     now,
	}))

	searchID, task, opts, err := prepareSearch(ctx, recordStore, "", "prior")
	require.NoError(t, err)
	assert.Equal(t, "prior", searchID)
	assert.Equal(t, "the original task", task)
	assert.Len(t, opts, 1)

	// The record is reopened for the continuation.
	record, err := recordStore.GetSearch(ctx, "prior")
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusInProgress, record.Status)
}

func TestPrepareSearchUnknownContinueID(t *testing.T) {
	_, _, _, err := prepareSearch(context.Background(), store.NewMemoryStore(), "", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPrintResultWithAnswer(t *testing.T) {
	answer := "the answer"
	result := schemas.RunResult{
		Reason: schemas.StopDone,
		Rounds: 3,
		Answer: &answer,
	}

	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)

	printResult(c, "search-1", result)
	out := buf.String()
	assert.Contains(t, out, "Search ID: search-1")
	assert.Contains(t, out, "DONE after 3 round(s)")
	assert.Contains(t, out, "the answer")
}

func TestPrintResultWithoutAnswerShowsWorkspace(t *testing.T) {
	result := schemas.RunResult{
		Reason: schemas.StopRoundLimitReached,
		Rounds: 2,
		Workspace: schemas.WorkspaceState{
			Status: schemas.StatusInProgress,
			Blocks: map[string]string{"abc-123": "partial finding"},
			Order:  []string{"abc-123"},
		},
	}

	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)

	printResult(c, "search-2", result)
	out := buf.String()
	assert.Contains(t, out, "ROUND_LIMIT_REACHED after 2 round(s)")
	assert.Contains(t, out, "<abc-123>partial finding</abc-123>")
}
