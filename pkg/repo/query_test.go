package repo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agrovault/trialbase/pkg/repo"
)

func TestJoin(t *testing.T) {
	assert.Equal(t,
		"SELECT id FROM sites WHERE name ILIKE $1 LIMIT 10",
		repo.Join("SELECT id FROM sites", "WHERE name ILIKE $1", "", "LIMIT 10"),
	)
}

func TestJoinWhere(t *testing.T) {
	assert.Equal(t, "WHERE a = $1 AND b = $2", repo.JoinWhere("a = $1", "", "b = $2"))
	assert.Equal(t, "", repo.JoinWhere())
}

func TestFormatLimitOffset(t *testing.T) {
	assert.Equal(t, "LIMIT 10 OFFSET 20", repo.FormatLimitOffset(10, 20))
	assert.Equal(t, "LIMIT 10", repo.FormatLimitOffset(10, 0))
	assert.Equal(t, "OFFSET 5", repo.FormatLimitOffset(0, 5))
	assert.Equal(t, "", repo.FormatLimitOffset(0, 0))
}
