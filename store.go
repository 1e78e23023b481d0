package takarik

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-openapi/inflect"

	"github.com/takarik/takarik-data-sub002/dialect"
	"github.com/takarik/takarik-data-sub002/schema"
	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

// A Store binds a registry to a database connection. It is the entry point
// for building queries, instantiating records, and scoping transactions.
// A store is safe for concurrent use; the builders and records it hands
// out are not.
type Store struct {
	registry *Registry
	driver   dialect.Driver
	cache    Cache
	ttl      time.Duration

	// per-table write generations; bumped on every write so cached
	// query results of stale generations are never served.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewStore returns a store over the given driver and registry.
func NewStore(driver dialect.Driver, registry *Registry) *Store {
	return &Store{
		registry: registry,
		driver:   driver,
		gens:     make(map[string]uint64),
	}
}

// Registry returns the schema registry of the store.
func (s *Store) Registry() *Registry { return s.registry }

// Dialect returns the dialect name of the underlying driver.
func (s *Store) Dialect() string { return s.driver.Dialect() }

// SetCache installs a query-result cache. Entries expire after ttl; a zero
// ttl keeps them until the next write to their table.
func (s *Store) SetCache(c Cache, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

// Close closes the underlying driver.
func (s *Store) Close() error { return s.driver.Close() }

// Query starts a query chain over the named entity type. An unknown
// entity surfaces as a sticky chain error.
func (s *Store) Query(entity string) *Builder {
	e, err := s.registry.Entity(entity)
	if err != nil {
		b := newBuilder(s, &schema.Entity{Name: entity})
		return b.setErr(err)
	}
	return newBuilder(s, e)
}

// New instantiates an unpersisted record of the named entity type with the
// given attributes assigned through the tracked setter.
func (s *Store) New(entity string, attrs Eq) (*Record, error) {
	e, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	rec := newRecord(s, e)
	if err := rec.Assign(attrs); err != nil {
		return nil, err
	}
	return rec, nil
}

// Find returns the record of the named entity type with the given primary
// key, or RecordNotFoundError.
func (s *Store) Find(ctx context.Context, entity string, id any) (*Record, error) {
	return s.Query(entity).Find(ctx, id)
}

// txScope carries the active transaction and its commit/rollback hooks
// through the context. Nested Transaction calls reuse the scope instead of
// opening a new transaction.
type txScope struct {
	tx            dialect.Tx
	afterCommit   []func(context.Context)
	afterRollback []func(context.Context)
}

type txScopeKey struct{}

func scopeFrom(ctx context.Context) (*txScope, bool) {
	scope, ok := ctx.Value(txScopeKey{}).(*txScope)
	return scope, ok
}

// conn returns the active transaction when the context carries one, and
// the root driver otherwise.
func (s *Store) conn(ctx context.Context) dialect.ExecQuerier {
	if scope, ok := scopeFrom(ctx); ok {
		return scope.tx
	}
	return s.driver
}

// Transaction runs fn inside a transaction. A nested call joins the
// transaction already carried by the context; only the outermost call
// commits or rolls back and fires the hooks registered during the scope.
// Hooks run with the caller's context, not the transaction-scoped one, so
// statements they issue go through the root driver.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := scopeFrom(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.driver.Tx(ctx)
	if err != nil {
		return err
	}
	scope := &txScope{tx: tx}
	err = fn(context.WithValue(ctx, txScopeKey{}, scope))
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		for _, hook := range scope.afterRollback {
			hook(ctx)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		for _, hook := range scope.afterRollback {
			hook(ctx)
		}
		return fmt.Errorf("takarik: committing transaction: %w", err)
	}
	for _, hook := range scope.afterCommit {
		hook(ctx)
	}
	return nil
}

// onTxDone registers hooks on the surrounding transaction scope. Without a
// scope the operation already committed, so the commit hook runs inline.
func onTxDone(ctx context.Context, commit, rollback func(context.Context)) {
	if scope, ok := scopeFrom(ctx); ok {
		scope.afterCommit = append(scope.afterCommit, commit)
		scope.afterRollback = append(scope.afterRollback, rollback)
		return
	}
	commit(ctx)
}

func (s *Store) bumpGeneration(table string) {
	s.mu.Lock()
	s.gens[table]++
	s.mu.Unlock()
}

func (s *Store) generation(table string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[table]
}

// queryRows executes a SELECT and materializes the full result set. Cached
// results are served only outside transactions, keyed by statement, its
// parameters, and the table's write generation.
func (s *Store) queryRows(ctx context.Context, table, query string, args []any) ([]string, [][]any, error) {
	_, inTx := scopeFrom(ctx)
	var key string
	if s.cache != nil && !inTx {
		key = CacheKey(table, s.generation(table), query, args)
		if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
			return decodeRows(data)
		}
	}
	rows, err := s.conn(ctx).Query(ctx, query, args)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var values [][]any
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if key != "" {
		if data, err := encodeRows(columns, values); err == nil {
			_ = s.cache.Set(ctx, key, data, s.ttl)
		}
	}
	return columns, values, nil
}

// loadAssociation resolves one association of a record with fresh queries.
// Polymorphic belongs-to reads the discriminator column and looks the
// concrete type up in the registry before the second query.
func (s *Store) loadAssociation(ctx context.Context, rec *Record, name string) (any, error) {
	d, err := s.registry.Association(rec.entity.Name, name)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case assoc.BelongsToKind:
		fk, _ := rec.Get(d.ForeignKey)
		if fk == nil {
			return nil, nil
		}
		return s.Query(d.Target).Where(Eq{d.PrimaryKey: fk}).First(ctx)
	case assoc.BelongsToPolymorphicKind:
		fk, _ := rec.Get(d.ForeignKey)
		disc, _ := rec.Get(d.TypeColumn)
		if fk == nil || disc == nil {
			return nil, nil
		}
		target, err := s.registry.PolymorphicEntity(fmt.Sprint(disc))
		if err != nil {
			return nil, err
		}
		return s.Query(target.Name).Where(Eq{target.PrimaryKey: fk}).First(ctx)
	case assoc.HasOneKind:
		return s.Query(d.Target).Where(Eq{d.ForeignKey: rec.ID()}).First(ctx)
	case assoc.HasManyKind:
		return s.Query(d.Target).Where(Eq{d.ForeignKey: rec.ID()}).All(ctx)
	case assoc.HasManyPolymorphicKind:
		return s.Query(d.Target).
			Where(Eq{d.ForeignKey: rec.ID(), d.TypeColumn: rec.entity.Name}).
			All(ctx)
	case assoc.HasManyThroughKind:
		return s.loadThrough(ctx, rec, d)
	case assoc.HasAndBelongsToManyKind:
		return s.loadManyToMany(ctx, rec, d)
	default:
		return nil, NewAssociationNotFoundError(rec.entity.Name, name)
	}
}

// loadThrough resolves a has-many-through association in two steps: load
// the intermediate rows, then query the targets they point at.
func (s *Store) loadThrough(ctx context.Context, rec *Record, d *assoc.Descriptor) ([]*Record, error) {
	midDesc, err := s.registry.Association(rec.entity.Name, d.Through)
	if err != nil {
		return nil, err
	}
	mids, err := s.Query(midDesc.Target).Where(Eq{midDesc.ForeignKey: rec.ID()}).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(mids) == 0 {
		return []*Record{}, nil
	}
	srcDesc, err := s.registry.Association(midDesc.Target, d.Name)
	if err != nil {
		if srcDesc, err = s.registry.Association(midDesc.Target, inflect.Singularize(d.Name)); err != nil {
			return nil, NewAssociationNotFoundError(midDesc.Target, d.Name)
		}
	}
	if srcDesc.Kind == assoc.BelongsToKind {
		ids := make([]any, 0, len(mids))
		for _, mid := range mids {
			if fk, _ := mid.Get(srcDesc.ForeignKey); fk != nil {
				ids = append(ids, fk)
			}
		}
		if len(ids) == 0 {
			return []*Record{}, nil
		}
		return s.Query(srcDesc.Target).Where(Eq{srcDesc.PrimaryKey: ids}).All(ctx)
	}
	ids := make([]any, 0, len(mids))
	for _, mid := range mids {
		ids = append(ids, mid.ID())
	}
	cond := Eq{srcDesc.ForeignKey: ids}
	if srcDesc.Kind == assoc.HasManyPolymorphicKind {
		cond[srcDesc.TypeColumn] = midDesc.Target
	}
	return s.Query(srcDesc.Target).Where(cond).All(ctx)
}

// loadManyToMany resolves a many-to-many association: read the partner
// keys from the join table, then query the target rows.
func (s *Store) loadManyToMany(ctx context.Context, rec *Record, d *assoc.Descriptor) ([]*Record, error) {
	target, err := s.registry.Entity(d.Target)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", d.AssociationForeignKey, d.JoinTable, d.ForeignKey)
	_, rows, err := s.queryRows(ctx, d.JoinTable, query, []any{rec.ID()})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []*Record{}, nil
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] != nil {
			ids = append(ids, row[0])
		}
	}
	return s.Query(target.Name).Where(Eq{target.PrimaryKey: ids}).All(ctx)
}
