// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/internal/metadata"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordTransitionAndHistory(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, l.RecordTransition(ctx, metadata.Transition{
		Spec: "shop", Kind: types.KindFrontend, From: types.StateNotGenerated, To: types.StatePendingReview, At: at,
	}))
	require.NoError(t, l.RecordTransition(ctx, metadata.Transition{
		Spec: "shop", Kind: types.KindFrontend, From: types.StatePendingReview, To: types.StateApproved, Actor: "ana", At: at.Add(time.Minute),
	}))
	require.NoError(t, l.RecordTransition(ctx, metadata.Transition{
		Spec: "other", Kind: types.KindTesting, From: types.StateNotGenerated, To: types.StatePendingReview, At: at,
	}))

	hist, err := l.History(ctx, "shop", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.StateApproved, hist[0].To)
	assert.Equal(t, "ana", hist[0].Actor)
	assert.True(t, hist[1].At.Equal(at))
	assert.Empty(t, hist[1].RunID)

	hist, err = l.History(ctx, "shop", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRunsTagTransitions(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	id, err := l.StartRun(ctx, "shop", "generate", []types.ModuleKind{types.KindFrontend, types.KindTesting})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, l.RecordTransition(WithRunID(ctx, id), metadata.Transition{
		Spec: "shop", Kind: types.KindFrontend, From: types.StateNotGenerated, To: types.StatePendingReview, At: time.Now(),
	}))
	require.NoError(t, l.FinishRun(ctx, id, 1, 1, 0))

	runs, err := l.Runs(ctx, "shop", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []types.ModuleKind{types.KindFrontend, types.KindTesting}, runs[0].Modules)
	assert.Equal(t, 1, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].EndedAt)

	hist, err := l.History(ctx, "shop", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, id, hist[0].RunID)

	assert.Error(t, l.FinishRun(ctx, "missing", 0, 0, 0))
}

func TestLedgerAsRecorder(t *testing.T) {
	l := openLedger(t)
	root := t.TempDir()
	store := metadata.New(metadata.Options{Layout: workspace.Layout{Root: root}, Recorder: l})

	ctx := context.Background()
	require.NoError(t, store.InitModules(ctx, "shop", []types.ModuleKind{types.KindServerAPI}))
	_, err := store.SetState(ctx, "shop", types.KindServerAPI, types.StateApproved, "bo")
	require.NoError(t, err)

	hist, err := l.History(ctx, "shop", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.StatePendingReview, hist[1].To)
	assert.Equal(t, "bo", hist[0].Actor)
}
