package takarik

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionsStringFragment(t *testing.T) {
	t.Parallel()

	var c conditions
	require.NoError(t, c.where("age > ?", []any{18}))

	sql, args := c.clause()
	assert.Equal(t, "age > ?", sql)
	assert.Equal(t, []any{18}, args)
}

func TestConditionsPlaceholderMismatch(t *testing.T) {
	t.Parallel()

	var c conditions
	err := c.where("age > ? AND name = ?", []any{18})
	require.Error(t, err)
	assert.True(t, IsInvalidCondition(err))
}

func TestConditionsEqMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		eq       Eq
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "scalar",
			eq:       Eq{"name": "Alice"},
			wantSQL:  "name = ?",
			wantArgs: []any{"Alice"},
		},
		{
			name:     "null",
			eq:       Eq{"deleted_at": nil},
			wantSQL:  "deleted_at IS NULL",
			wantArgs: nil,
		},
		{
			name:     "membership",
			eq:       Eq{"id": []any{1, 2, 3}},
			wantSQL:  "id IN (?,?,?)",
			wantArgs: []any{1, 2, 3},
		},
		{
			name:     "inclusive_range",
			eq:       Eq{"age": Range{Min: 18, Max: 30}},
			wantSQL:  "age BETWEEN ? AND ?",
			wantArgs: []any{18, 30},
		},
		{
			name:     "exclusive_range",
			eq:       Eq{"age": Range{Min: 18, Max: 30, ExcludeEnd: true}},
			wantSQL:  "age >= ? AND age < ?",
			wantArgs: []any{18, 30},
		},
		{
			name:     "sorted_keys",
			eq:       Eq{"b": 2, "a": 1},
			wantSQL:  "a = ? AND b = ?",
			wantArgs: []any{1, 2},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var c conditions
			require.NoError(t, c.where(tt.eq, nil))
			sql, args := c.clause()
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestConditionsNot(t *testing.T) {
	t.Parallel()

	t.Run("inverts_null_check", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.not(Eq{"deleted_at": nil}, nil))
		sql, _ := c.clause()
		assert.Equal(t, "deleted_at IS NOT NULL", sql)
	})

	t.Run("inverts_membership", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.not(Eq{"id": []any{1, 2}}, nil))
		sql, args := c.clause()
		assert.Equal(t, "id NOT IN (?,?)", sql)
		assert.Equal(t, []any{1, 2}, args)
	})

	t.Run("wraps_equality", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.not(Eq{"name": "Alice"}, nil))
		sql, _ := c.clause()
		assert.Equal(t, "NOT (name = ?)", sql)
	})

	t.Run("wraps_fragment", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.not("age > ?", []any{18}))
		sql, _ := c.clause()
		assert.Equal(t, "NOT (age > ?)", sql)
	})

	t.Run("wraps_range", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.not(Eq{"age": Range{Min: 1, Max: 5}}, nil))
		sql, _ := c.clause()
		assert.Equal(t, "NOT (age BETWEEN ? AND ?)", sql)
	})
}

func TestConditionsGrouping(t *testing.T) {
	t.Parallel()

	t.Run("multiple_fragments_parenthesized", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.where(Eq{"a": 1}, nil))
		require.NoError(t, c.where(Eq{"b": 2}, nil))
		sql, args := c.clause()
		assert.Equal(t, "(a = ?) AND (b = ?)", sql)
		assert.Equal(t, []any{1, 2}, args)
	})

	t.Run("or_connector", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.where(Eq{"a": 1}, nil))
		require.NoError(t, c.or(Eq{"b": 2}, nil))
		require.NoError(t, c.where(Eq{"d": 4}, nil))
		sql, args := c.clause()
		assert.Equal(t, "(a = ?) OR (b = ?) AND (d = ?)", sql)
		assert.Equal(t, []any{1, 2, 4}, args)
	})

	t.Run("single_or_tagged_parenthesized", func(t *testing.T) {
		var c conditions
		require.NoError(t, c.or(Eq{"a": 1}, nil))
		sql, _ := c.clause()
		assert.Equal(t, "(a = ?)", sql)
	})

	t.Run("empty", func(t *testing.T) {
		var c conditions
		sql, args := c.clause()
		assert.Empty(t, sql)
		assert.Nil(t, args)
	})
}

func TestConditionsErrors(t *testing.T) {
	t.Parallel()

	var c conditions
	assert.True(t, IsInvalidCondition(c.where(3.14, nil)))
	assert.True(t, IsInvalidCondition(c.where(Eq{}, nil)))
	assert.True(t, IsInvalidCondition(c.where(Eq{"id": []any{}}, nil)))
	assert.True(t, IsInvalidCondition(c.where(Eq{"age": Range{Min: 1}}, nil)))
	assert.True(t, IsInvalidCondition(c.where(Eq{"a": 1}, []any{2})))
}

// Placeholder/parameter parity holds for arbitrary chains.
func TestConditionsPlaceholderParity(t *testing.T) {
	t.Parallel()

	var c conditions
	require.NoError(t, c.where(Eq{"a": 1, "b": nil, "c": []any{1, 2, 3}}, nil))
	require.NoError(t, c.or("d <> ?", []any{4}))
	require.NoError(t, c.not(Eq{"e": Range{Min: 5, Max: 6, ExcludeEnd: true}}, nil))

	sql, args := c.clause()
	assert.Equal(t, len(args), strings.Count(sql, "?"))
	assert.Equal(t, []any{1, 1, 2, 3, 4, 5, 6}, args)
}
