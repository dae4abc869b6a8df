package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummary_Add_Counters(t *testing.T) {
	summary := NewSummary()
	summary.Add(KindHeaderMissing, LevelError, Issue{Column: "citation_doi", Message: "missing"})
	summary.Add(KindValue, LevelError, Issue{Row: 2, Column: "yield", Message: "not a number"})
	summary.Add(KindUnresolved, LevelWarning, Issue{Row: 2, Column: "site", Message: "no match"})

	require.Equal(t, 1, summary.HeaderErrorCount)
	require.Equal(t, 1, summary.DataErrorCount)
	require.Equal(t, 1, summary.WarningCount)
	require.Equal(t, 2, summary.TotalErrorCount())
	require.True(t, summary.HasErrors())
}

func TestSummary_ReplaceResolutionIssues(t *testing.T) {
	summary := NewSummary()
	summary.Add(KindValue, LevelError, Issue{Row: 2, Column: "yield", Message: "not a number"})
	summary.Add(KindUnresolved, LevelWarning, Issue{Row: 2, Column: "site", Message: "no match for Atlantis"})
	summary.Add(KindAmbiguous, LevelError, Issue{Row: 3, Column: "species", Message: "two matches"})

	latest := NewSummary()
	latest.Add(KindUnresolved, LevelWarning, Issue{Row: 4, Column: "cultivar", Message: "no match for B73"})

	summary.ReplaceResolutionIssues(latest)

	require.Len(t, summary.Issues[KindUnresolved], 1)
	require.Equal(t, 4, summary.Issues[KindUnresolved][0].Row)
	require.Empty(t, summary.Issues[KindAmbiguous])
	require.Equal(t, 1, summary.WarningCount)
	require.Equal(t, 1, summary.DataErrorCount, "the yield error must survive the swap")
	require.Len(t, summary.Issues[KindValue], 1)
}

func TestSummary_ReplaceResolutionIssues_NoResolutionFindings(t *testing.T) {
	summary := NewSummary()
	summary.Add(KindValue, LevelError, Issue{Row: 2, Column: "mean", Message: "bad"})

	summary.ReplaceResolutionIssues(NewSummary())

	require.Equal(t, 1, summary.DataErrorCount)
	require.Zero(t, summary.WarningCount)
}
