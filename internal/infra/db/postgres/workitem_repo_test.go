package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

func TestPlaceholderRows(t *testing.T) {
	assert.Equal(t, "($1,$2,$3)", placeholderRows(1, 3))
	assert.Equal(t, "($1,$2),($3,$4)", placeholderRows(2, 2))
}

func TestBuildWhereEmptyFilter(t *testing.T) {
	where, params := buildWhere(domain.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, params)
}

func TestBuildWhereNumbersParamsInOrder(t *testing.T) {
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	where, params := buildWhere(domain.Filter{
		Release:     "R25.3",
		State:       "Done",
		Feature:     "checkout",
		FromChanged: &from,
		Query:       "crash",
	})

	assert.Equal(t,
		"WHERE release = $1 AND state = $2 AND feature ILIKE $3 AND changed_date >= $4"+
			" AND (title ILIKE $5 OR tags ILIKE $5 OR CAST(work_item_id AS TEXT) ILIKE $5)",
		where)
	require.Len(t, params, 5)
	assert.Equal(t, "R25.3", params[0])
	assert.Equal(t, "%checkout%", params[2])
	assert.Equal(t, "%crash%", params[4])
}

func TestBuildWhereEscapesLikeInput(t *testing.T) {
	_, params := buildWhere(domain.Filter{Feature: "100%_done"})
	require.Len(t, params, 1)
	assert.Equal(t, `%100\%\_done%`, params[0])
}

func TestEscapeLikePattern(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d`, escapeLikePattern(`a\b%c_d`))
	assert.Equal(t, "plain", escapeLikePattern("plain"))
}
