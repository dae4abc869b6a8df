package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_ValidFile(t *testing.T) {
	data := []byte("site,species,yield,citation_doi\nRothamsted,Zea mays,8.1,10.1000/j.fcr.001\n")

	summary := NewSummary()
	table := Parse(data, summary)

	require.NotNil(t, table)
	require.False(t, summary.Fatal)
	require.Equal(t, []string{"site", "species", "yield", "citation_doi"}, table.Headers)
	require.Len(t, table.Rows, 1)
	require.Equal(t, 2, table.Rows[0].Line)
	require.Equal(t, "Zea mays", table.Rows[0].Values[1])
}

func TestParse_StripsByteOrderMark(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("yield,citation_doi\n4.2,10.1000/x\n")...)

	summary := NewSummary()
	table := Parse(data, summary)

	require.NotNil(t, table)
	require.False(t, summary.Fatal)
	require.Equal(t, "yield", table.Headers[0])
}

func TestParse_EmptyFileIsFatalIO(t *testing.T) {
	summary := NewSummary()
	table := Parse([]byte("  \n"), summary)

	require.Nil(t, table)
	require.True(t, summary.Fatal)
	require.Len(t, summary.Issues[KindIO], 1)
	require.Equal(t, 1, summary.HeaderErrorCount)
}

func TestParse_InvalidUTF8IsFatalEncoding(t *testing.T) {
	data := []byte("yield,citation_doi\n4.2,10.1000/x\n")
	data = append(data, 0xFF, 0xFE)

	summary := NewSummary()
	table := Parse(data, summary)

	require.Nil(t, table)
	require.True(t, summary.Fatal)
	require.Len(t, summary.Issues[KindEncoding], 1)
	require.Empty(t, summary.Issues[KindParse])
}

func TestParse_MalformedCSVIsFatalParse(t *testing.T) {
	data := []byte("yield,citation_doi\n\"4.2,10.1000/x\n")

	summary := NewSummary()
	table := Parse(data, summary)

	require.Nil(t, table)
	require.True(t, summary.Fatal)
	require.Len(t, summary.Issues[KindParse], 1)
}

func TestParse_InconsistentFieldCountIsFatalParse(t *testing.T) {
	data := []byte("yield,citation_doi\n4.2\n")

	summary := NewSummary()
	table := Parse(data, summary)

	require.Nil(t, table)
	require.True(t, summary.Fatal)
	issues := summary.Issues[KindParse]
	require.Len(t, issues, 1)
	require.Equal(t, 2, issues[0].Row)
}

func TestParse_SkipsBlankRows(t *testing.T) {
	data := []byte("yield,citation_doi\n4.2,10.1000/x\n,\n5.0,10.1000/y\n")

	summary := NewSummary()
	table := Parse(data, summary)

	require.NotNil(t, table)
	require.Len(t, table.Rows, 2)
	require.Equal(t, 2, table.Rows[0].Line)
	require.Equal(t, 4, table.Rows[1].Line)
}

func TestParse_HeaderOnlyFile(t *testing.T) {
	summary := NewSummary()
	table := Parse([]byte("yield,citation_doi\n"), summary)

	require.NotNil(t, table)
	require.False(t, summary.Fatal)
	require.Empty(t, table.Rows)
}
