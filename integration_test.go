package takarik

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/takarik/takarik-data-sub002/dialect"
	sqld "github.com/takarik/takarik-data-sub002/dialect/sql"
	"github.com/takarik/takarik-data-sub002/schema"
	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

var sqliteDDL = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, user_id INTEGER)`,
	`CREATE TABLE accounts (id INTEGER PRIMARY KEY AUTOINCREMENT, balance INTEGER, lock_version INTEGER)`,
	`CREATE TABLE authors (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
	`CREATE TABLE books (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, author_id INTEGER)`,
}

// openSQLite returns a store over a fresh in-memory database.
func openSQLite(t *testing.T) *Store {
	t.Helper()
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, ddl := range sqliteDDL {
		_, err := drv.Exec(ctx, ddl, nil)
		require.NoError(t, err)
	}
	r := NewRegistry()
	r.MustRegister(
		schema.New("User").
			Column("name", schema.TypeString).
			Column("age", schema.TypeInt).
			Entity(),
		assoc.HasMany("posts", "Post").Dependent(assoc.DependentDestroy),
	)
	r.MustRegister(
		schema.New("Post").Column("title", schema.TypeString).Column("user_id", schema.TypeInt).Entity(),
		assoc.BelongsTo("user", "User"),
	)
	r.MustRegister(
		schema.New("Account").
			Column("balance", schema.TypeInt).
			Column("lock_version", schema.TypeInt).
			LockColumn("lock_version").
			Entity(),
	)
	r.MustRegister(
		schema.New("Author").Column("name", schema.TypeString).Entity(),
		assoc.HasMany("books", "Book").Dependent(assoc.DependentNullify),
	)
	r.MustRegister(
		schema.New("Book").Column("title", schema.TypeString).Column("author_id", schema.TypeInt).Entity(),
		assoc.BelongsTo("author", "Author").Optional(),
	)
	return NewStore(drv, r)
}

func seedUser(t *testing.T, s *Store, name string, age int) *Record {
	t.Helper()
	rec, err := s.New("User", Eq{"name": name, "age": age})
	require.NoError(t, err)
	require.NoError(t, rec.SaveX(context.Background()))
	return rec
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	created := seedUser(t, s, "a8m", 30)
	require.NotNil(t, created.ID())

	loaded, err := s.Find(ctx, "User", created.ID())
	require.NoError(t, err)
	name, err := loaded.String("name")
	require.NoError(t, err)
	assert.Equal(t, "a8m", name)
	age, err := loaded.Int("age")
	require.NoError(t, err)
	assert.Equal(t, int64(30), age)
	assert.Equal(t, created.ID(), loaded.ID())
}

func TestSQLiteOptimisticLocking(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	rec, err := s.New("Account", Eq{"balance": 100, "lock_version": 0})
	require.NoError(t, err)
	require.NoError(t, rec.SaveX(ctx))

	// two in-memory copies of the same row.
	copyA, err := s.Find(ctx, "Account", rec.ID())
	require.NoError(t, err)
	copyB, err := s.Find(ctx, "Account", rec.ID())
	require.NoError(t, err)

	ok, err := copyA.Update(ctx, Eq{"balance": 150})
	require.NoError(t, err)
	require.True(t, ok)

	// the stale copy loses.
	_, err = copyB.Update(ctx, Eq{"balance": 200})
	require.True(t, IsStaleObject(err))

	fresh, err := s.Find(ctx, "Account", rec.ID())
	require.NoError(t, err)
	balance, err := fresh.Int("balance")
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)
}

func TestSQLiteDependentDestroy(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	user := seedUser(t, s, "a8m", 30)
	for _, title := range []string{"one", "two", "three"} {
		post, err := s.New("Post", Eq{"title": title, "user_id": user.ID()})
		require.NoError(t, err)
		require.NoError(t, post.SaveX(ctx))
	}

	ok, err := user.Destroy(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := s.Query("Post").Where(Eq{"user_id": user.ID()}).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "dependent destroy leaves no child rows")
}

func TestSQLiteDependentNullify(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	author, err := s.New("Author", Eq{"name": "kafka"})
	require.NoError(t, err)
	require.NoError(t, author.SaveX(ctx))
	book, err := s.New("Book", Eq{"title": "the trial", "author_id": author.ID()})
	require.NoError(t, err)
	require.NoError(t, book.SaveX(ctx))

	ok, err := author.Destroy(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the row persists with its foreign key cleared.
	loaded, err := s.Find(ctx, "Book", book.ID())
	require.NoError(t, err)
	fk, _ := loaded.Get("author_id")
	assert.Nil(t, fk)
}

func TestSQLiteInvalidSave(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()
	s.Registry().Validates("User", ValidatorFunc(func(r *Record) Errors {
		errs := Errors{}
		if name, _ := r.String("name"); name == "" {
			errs.Add("name", "can't be blank")
		}
		return errs
	}))

	rec, err := s.New("User", Eq{"age": 1})
	require.NoError(t, err)
	ok, err := rec.Save(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, rec.Errors().Any())

	// no row was written.
	n, err := s.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = rec.SaveX(ctx)
	require.True(t, IsValidationError(err))
}

func TestSQLiteFindEach(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedUser(t, s, "u", 20+i)
	}
	q := s.Query("User").Order("id")
	var (
		calls   int
		batches []int
	)
	err := q.FindInBatches(ctx, 2, func(recs []*Record) error {
		batches = append(batches, len(recs))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, batches)

	err = q.FindEach(ctx, 2, func(*Record) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestSQLiteTransactionRollback(t *testing.T) {
	t.Parallel()
	s := openSQLite(t)
	ctx := context.Background()

	var committed, rolledBack bool
	s.Registry().Callback("User", AfterCommit, func(context.Context, *Record) error {
		committed = true
		return nil
	})
	s.Registry().Callback("User", AfterRollback, func(context.Context, *Record) error {
		rolledBack = true
		return nil
	})

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context) error {
		rec, err := s.New("User", Eq{"name": "ghost", "age": 1})
		if err != nil {
			return err
		}
		if err := rec.SaveX(ctx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, committed)
	assert.True(t, rolledBack)

	// the insert is not visible outside the rolled-back transaction.
	n, err := s.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
