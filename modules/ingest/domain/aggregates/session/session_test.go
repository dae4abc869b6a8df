package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
)

func TestStage_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Stage
		want     bool
	}{
		{StageStart, StageFileValidated, true},
		{StageFileValidated, StageDefaultsChosen, true},
		{StageDefaultsChosen, StageConfirmed, true},
		{StageConfirmed, StageInserted, true},
		// Skipping ahead is never allowed.
		{StageStart, StageDefaultsChosen, false},
		{StageStart, StageConfirmed, false},
		{StageFileValidated, StageInserted, false},
		{StageDefaultsChosen, StageInserted, false},
		// Every live stage can fail and can restart.
		{StageStart, StageFailed, true},
		{StageConfirmed, StageFailed, true},
		{StageFailed, StageStart, true},
		{StageInserted, StageStart, true},
		// A failed run retries from where it stopped.
		{StageFailed, StageConfirmed, true},
		{StageFailed, StageFileValidated, true},
		// Double submit: a finished session never inserts again.
		{StageInserted, StageInserted, false},
		{StageFailed, StageInserted, false},
		// Going back to fix input is allowed.
		{StageConfirmed, StageDefaultsChosen, true},
		{StageDefaultsChosen, StageFileValidated, true},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSession_WithStageRejectsInvalidTransition(t *testing.T) {
	sess := New("user-1", validation.DatasetYields)

	_, err := sess.WithStage(StageConfirmed)

	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_WithStageReturnsFreshCopy(t *testing.T) {
	sess := New("user-1", validation.DatasetYields)

	advanced, err := sess.WithStage(StageFileValidated)

	require.NoError(t, err)
	require.Equal(t, StageFileValidated, advanced.Stage())
	require.Equal(t, StageStart, sess.Stage())
	require.Equal(t, sess.ID(), advanced.ID())
}

func TestSession_WithFailureKeepsStateForRetry(t *testing.T) {
	sess := New("user-1", validation.DatasetYields).
		WithFile(File{Filename: "yields.csv", RowCount: 12}).
		WithCitations([]int64{3})

	failed := sess.WithFailure("catalog unavailable")

	require.Equal(t, StageFailed, failed.Stage())
	require.Equal(t, "catalog unavailable", failed.LastError())
	require.True(t, failed.HasFile())
	require.Equal(t, []int64{3}, failed.Citations())
}

func TestSession_LeavingFailedClearsLastError(t *testing.T) {
	failed := New("user-1", validation.DatasetYields).WithFailure("boom")

	restarted, err := failed.WithStage(StageStart)

	require.NoError(t, err)
	require.Empty(t, restarted.LastError())
}

func TestSession_ClearFilePreservesDefaultsAndCitations(t *testing.T) {
	date := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	sess := New("user-1", validation.DatasetYields).
		WithFile(File{Filename: "yields.csv", Path: "/tmp/u/yields.csv", RowCount: 40, Headers: []string{"yield"}}).
		WithDefaults(Defaults{Site: "Rothamsted", AccessLevel: 2, Date: &date, Rounding: 3}).
		WithCitations([]int64{3, 9})

	cleared := sess.ClearFile()

	require.False(t, cleared.HasFile())
	require.Nil(t, cleared.File())
	require.Equal(t, "Rothamsted", cleared.Defaults().Site)
	require.Equal(t, 3, cleared.Defaults().Rounding)
	require.Equal(t, []int64{3, 9}, cleared.Citations())
}

func TestSession_FileReturnsDetachedCopy(t *testing.T) {
	sess := New("user-1", validation.DatasetYields).
		WithFile(File{Filename: "a.csv", Headers: []string{"yield", "site"}})

	file := sess.File()
	file.Filename = "b.csv"
	file.Headers[0] = "tampered"

	require.Equal(t, "a.csv", sess.File().Filename)
	require.Equal(t, "yield", sess.File().Headers[0])
}

func TestSession_NewStartsRestricted(t *testing.T) {
	sess := New("user-1", validation.DatasetTraits)

	require.Equal(t, StageStart, sess.Stage())
	require.Equal(t, DefaultAccessLevel, sess.Defaults().AccessLevel)
	require.Equal(t, DefaultRounding, sess.Defaults().Rounding)
	require.Equal(t, validation.DatasetTraits, sess.Dataset())
}

func TestDefaults_Reference(t *testing.T) {
	d := Defaults{Site: "Mead", Species: "Zea mays"}

	require.Equal(t, "Mead", d.Reference("site"))
	require.Equal(t, "Zea mays", d.Reference("species"))
	require.Empty(t, d.Reference("treatment"))
	require.Empty(t, d.Reference("yield"))
}
