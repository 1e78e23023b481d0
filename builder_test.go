package takarik

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takarik/takarik-data-sub002/dialect"
	sqld "github.com/takarik/takarik-data-sub002/dialect/sql"
)

// newMockStore returns a store over a sqlmock connection with the blog
// registry. Statements are matched by exact text.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqld.OpenDB(dialect.SQLite, db), blogRegistry(t)), mock
}

func TestBuilderToSQL(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, args, err := s.Query("User").
		Where(Eq{"name": "a8m"}).
		Order("age", "DESC").
		Limit(10).
		Offset(5).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE name = ? ORDER BY age DESC LIMIT 10 OFFSET 5", query)
	assert.Equal(t, []any{"a8m"}, args)
}

func TestBuilderWhereChaining(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, args, err := s.Query("User").
		Where(Eq{"name": "a8m"}).
		Where("age > ?", 18).
		Not(Eq{"name": nil}).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE (name = ?) AND (age > ?) AND (name IS NOT NULL)", query)
	assert.Equal(t, []any{"a8m", 18}, args)
}

func TestBuilderOrGrouping(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, args, err := s.Query("User").
		Where("age > ?", 18).
		Or(Eq{"name": "a8m"}).
		Where(Eq{"age": []any{30, 40}}).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE (age > ?) OR (name = ?) AND (age IN (?,?))", query)
	assert.Equal(t, []any{18, "a8m", 30, 40}, args)
}

// Placeholder count always equals the parameter count, in append order.
func TestBuilderPlaceholderParity(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, args, err := s.Query("User").
		Where("age BETWEEN ? AND ?", 20, 30).
		Or(Eq{"name": []any{"a8m", "nati"}}).
		Group("age").
		Having("COUNT(*) > ?", 1).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, len(args), strings.Count(query, "?"))
	assert.Equal(t, []any{20, 30, "a8m", "nati", 1}, args)
	assert.Contains(t, query, "GROUP BY age HAVING")
}

func TestBuilderJoins(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, _, err := s.Query("Post").Joins("user").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT posts.id AS posts_id, posts.title AS posts_title, posts.user_id AS posts_user_id "+
			"FROM posts INNER JOIN users ON posts.user_id = users.id", query)

	// unknown and polymorphic associations surface as sticky errors.
	_, _, err = s.Query("Post").Joins("bananas").ToSQL()
	assert.True(t, IsAssociationNotFound(err))
	_, _, err = s.Query("Post").Joins("comments").ToSQL()
	assert.True(t, IsUnsupportedJoin(err))
}

func TestBuilderExplicitJoinsStickyError(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	// an errored chain stays errored through the explicit join methods and
	// accumulates no clauses.
	b := s.Query("Post").Joins("bananas").
		InnerJoin("users", "posts.user_id = users.id").
		LeftJoin("tags", "posts.id = tags.post_id").
		RightJoin("comments", "posts.id = comments.post_id")
	_, _, err := b.ToSQL()
	assert.True(t, IsAssociationNotFound(err))
	assert.Empty(t, b.joins)
}

func TestBuilderIncludes(t *testing.T) {
	t.Parallel()
	s, _ := newMockStore(t)

	query, _, err := s.Query("User").Includes("posts").ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT users.id AS users_id, users.name AS users_name, users.age AS users_age, "+
			"posts.id AS posts_id, posts.title AS posts_title, posts.user_id AS posts_user_id "+
			"FROM users LEFT JOIN posts ON users.id = posts.user_id", query)
}

func TestBuilderFirstLast(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM users ORDER BY id ASC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a8m"))
	rec, err := s.Query("User").First(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.ID())

	// last reverses every explicit order direction.
	mock.ExpectQuery("SELECT * FROM users ORDER BY age DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(2, "nati"))
	rec, err = s.Query("User").Order("age", "ASC").Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.ID())

	// absent any order, last falls back to descending primary key.
	mock.ExpectQuery("SELECT * FROM users ORDER BY id DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec, err = s.Query("User").Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderFind(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM users WHERE users.id = ? LIMIT 1").
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow(8, "a8m", 30))
	rec, err := s.Find(ctx, "User", 8)
	require.NoError(t, err)
	name, err := rec.String("name")
	require.NoError(t, err)
	assert.Equal(t, "a8m", name)
	assert.True(t, rec.IsPersisted())
	assert.Empty(t, rec.Changed())

	mock.ExpectQuery("SELECT * FROM users WHERE users.id = ? LIMIT 1").
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.Find(ctx, "User", 404)
	require.True(t, IsRecordNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderAggregates(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()
	q := s.Query("User").Where("age > ?", 18)

	mock.ExpectQuery("SELECT COUNT(*) FROM users WHERE age > ?").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectQuery("SELECT AVG(age) FROM users WHERE age > ?").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(27.5))
	avg, err := q.Average(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, 27.5, avg)

	// the aggregate override never leaks into the chain.
	query, _, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE age > ?", query)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderExists(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM users WHERE name = ?").
		WithArgs("a8m").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	ok, err := s.Query("User").Where(Eq{"name": "a8m"}).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery("SELECT 1 FROM users WHERE name = ?").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err = s.Query("User").Where(Eq{"name": "nobody"}).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderPluck(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT name FROM users ORDER BY name ASC").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m").AddRow("nati"))
	names, err := s.Query("User").Order("name").Pluck(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"a8m", "nati"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderUpdateAll(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET age = ?, name = ? WHERE id IN (?,?)").
		WithArgs(30, "a8m", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := s.Query("User").
		Where(Eq{"id": []any{1, 2}}).
		UpdateAll(context.Background(), Eq{"name": "a8m", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderDeleteAll(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM users WHERE age IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := s.Query("User").Where(Eq{"age": nil}).DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
