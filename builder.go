package takarik

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/takarik/takarik-data-sub002/schema"
	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

// An order is one ORDER BY term.
type order struct {
	column string
	desc   bool
}

// An include is an eagerly loaded association resolved at chain time.
type include struct {
	name   string
	desc   *assoc.Descriptor
	target *schema.Entity
}

// A Builder composes a SELECT, bulk UPDATE, or bulk DELETE statement over
// one entity type. Every chaining call returns the receiver; the first
// error encountered in the chain sticks and surfaces on execution. A
// builder is single-owner and must not be shared across goroutines.
type Builder struct {
	store    *Store
	entity   *schema.Entity
	conds    conditions
	having   conditions
	selects  []string
	joins    []JoinClause
	includes []include
	orders   []order
	groups   []string
	limit    int
	offset   int
	readonly bool
	strict   bool
	err      error
}

func newBuilder(store *Store, entity *schema.Entity) *Builder {
	return &Builder{store: store, entity: entity, limit: -1, offset: -1}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.conds = b.conds.clone()
	c.having = b.having.clone()
	c.selects = append([]string(nil), b.selects...)
	c.joins = append([]JoinClause(nil), b.joins...)
	c.includes = append([]include(nil), b.includes...)
	c.orders = append([]order(nil), b.orders...)
	c.groups = append([]string(nil), b.groups...)
	return &c
}

// Err returns the first error recorded by the chain.
func (b *Builder) Err() error { return b.err }

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Where appends an AND-connected condition. The condition is either a SQL
// fragment with `?` placeholders matched by args, or an Eq map.
func (b *Builder) Where(cond any, args ...any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.conds.where(cond, args); err != nil {
		return b.setErr(err)
	}
	return b
}

// Not appends a negated AND-connected condition.
func (b *Builder) Not(cond any, args ...any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.conds.not(cond, args); err != nil {
		return b.setErr(err)
	}
	return b
}

// Or appends an OR-connected condition.
func (b *Builder) Or(cond any, args ...any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.conds.or(cond, args); err != nil {
		return b.setErr(err)
	}
	return b
}

// Joins resolves association names into JOIN clauses via the registry.
// Polymorphic associations fail with UnsupportedJoinError.
func (b *Builder) Joins(names ...string) *Builder {
	if b.err != nil {
		return b
	}
	for _, name := range names {
		clauses, _, err := b.store.registry.ResolveJoin(b.entity.Name, name)
		if err != nil {
			return b.setErr(err)
		}
		b.joins = append(b.joins, clauses...)
	}
	return b
}

// InnerJoin appends an explicit INNER JOIN clause.
func (b *Builder) InnerJoin(table, on string) *Builder {
	if b.err != nil {
		return b
	}
	b.joins = append(b.joins, JoinClause{Kind: InnerJoin, Table: table, On: on})
	return b
}

// LeftJoin appends an explicit LEFT JOIN clause.
func (b *Builder) LeftJoin(table, on string) *Builder {
	if b.err != nil {
		return b
	}
	b.joins = append(b.joins, JoinClause{Kind: LeftJoin, Table: table, On: on})
	return b
}

// RightJoin appends an explicit RIGHT JOIN clause.
func (b *Builder) RightJoin(table, on string) *Builder {
	if b.err != nil {
		return b
	}
	b.joins = append(b.joins, JoinClause{Kind: RightJoin, Table: table, On: on})
	return b
}

// Includes joins the named associations and marks them for eager loading:
// their columns are selected alongside the primary entity's and
// demultiplexed into the association cache of each returned record.
func (b *Builder) Includes(names ...string) *Builder {
	if b.err != nil {
		return b
	}
	for _, name := range names {
		clauses, target, err := b.store.registry.ResolveJoin(b.entity.Name, name)
		if err != nil {
			return b.setErr(err)
		}
		d, err := b.store.registry.Association(b.entity.Name, name)
		if err != nil {
			return b.setErr(err)
		}
		b.joins = append(b.joins, clauses...)
		b.includes = append(b.includes, include{name: name, desc: d, target: target})
	}
	return b
}

// Order appends an ORDER BY term. Direction is "ASC" or "DESC",
// case-insensitive, defaulting to ascending.
func (b *Builder) Order(column string, direction ...string) *Builder {
	o := order{column: column}
	if len(direction) > 0 && strings.EqualFold(direction[0], "DESC") {
		o.desc = true
	}
	b.orders = append(b.orders, o)
	return b
}

// Group appends GROUP BY columns.
func (b *Builder) Group(columns ...string) *Builder {
	b.groups = append(b.groups, columns...)
	return b
}

// Having appends a HAVING condition. Its parameters follow every WHERE
// parameter in the final statement.
func (b *Builder) Having(cond any, args ...any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.having.where(cond, args); err != nil {
		return b.setErr(err)
	}
	return b
}

// Limit sets the LIMIT clause.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset sets the OFFSET clause.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Select overrides the selected column list.
func (b *Builder) Select(columns ...string) *Builder {
	b.selects = append(b.selects, columns...)
	return b
}

// ReadOnly marks every record materialized by the builder read-only.
func (b *Builder) ReadOnly() *Builder {
	b.readonly = true
	return b
}

// StrictLoading marks every record materialized by the builder for strict
// loading.
func (b *Builder) StrictLoading() *Builder {
	b.strict = true
	return b
}

// ToSQL assembles the SELECT statement and its positional parameters.
// WHERE parameters precede HAVING parameters, matching placeholder order.
func (b *Builder) ToSQL() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT ")
	sb.WriteString(b.columnList())
	sb.WriteString(" FROM ")
	sb.WriteString(b.entity.Table)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j.Kind.SQL())
		sb.WriteString(" ")
		sb.WriteString(j.Table)
		sb.WriteString(" ON ")
		sb.WriteString(j.On)
	}
	if clause, a := b.conds.clause(); clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
		args = append(args, a...)
	}
	if len(b.groups) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groups, ", "))
	}
	if clause, a := b.having.clause(); clause != "" {
		sb.WriteString(" HAVING ")
		sb.WriteString(clause)
		args = append(args, a...)
	}
	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range b.orders {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.column)
			if o.desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}
	if b.limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	if b.offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}
	return sb.String(), args, nil
}

// columnList returns the selected columns. Joined queries without an
// explicit override select every schema column of the primary entity and
// each eagerly included target, aliased {table}_{column} so the row can be
// split back per entity.
func (b *Builder) columnList() string {
	if len(b.selects) > 0 {
		return strings.Join(b.selects, ", ")
	}
	if len(b.joins) == 0 {
		return "*"
	}
	var cols []string
	cols = appendAliased(cols, b.entity)
	for _, inc := range b.includes {
		cols = appendAliased(cols, inc.target)
	}
	return strings.Join(cols, ", ")
}

func appendAliased(cols []string, e *schema.Entity) []string {
	for _, c := range e.Columns {
		cols = append(cols, fmt.Sprintf("%s.%s AS %s_%s", e.Table, c.Name, e.Table, c.Name))
	}
	return cols
}

// All executes the query and materializes every result row. Joined rows
// are demultiplexed per entity; duplicate primary rows produced by
// collection joins collapse into one record with its association cache
// accumulated.
func (b *Builder) All(ctx context.Context) ([]*Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	columns, rows, err := b.store.queryRows(ctx, b.entity.Table, query, args)
	if err != nil {
		return nil, err
	}
	var recs []*Record
	if len(b.joins) == 0 {
		recs, err = b.scanPlain(columns, rows)
	} else {
		recs, err = b.scanJoined(columns, rows)
	}
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if b.readonly {
			rec.MarkReadOnly()
		}
		if b.strict {
			rec.MarkStrictLoading()
		}
	}
	return recs, nil
}

// Find returns the record with the given primary key, or
// RecordNotFoundError when no row matches.
func (b *Builder) Find(ctx context.Context, id any) (*Record, error) {
	q := b.clone().Where(Eq{b.entity.Table + "." + b.entity.PrimaryKey: id}).Limit(1)
	recs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, NewRecordNotFoundErrorWithID(b.entity.Name, id)
	}
	return recs[0], nil
}

// First returns the first record, ordering by ascending primary key only
// when the chain carries no explicit order. It returns nil without error
// when no row matches.
func (b *Builder) First(ctx context.Context) (*Record, error) {
	q := b.clone()
	if len(q.orders) == 0 {
		q.orders = []order{{column: q.entity.PrimaryKey}}
	}
	q.limit = 1
	recs, err := q.All(ctx)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// Last returns the last record: every explicit ORDER BY direction is
// reversed, or absent any order, a single descending primary-key order
// applies. It returns nil without error when no row matches.
func (b *Builder) Last(ctx context.Context) (*Record, error) {
	q := b.clone()
	if len(q.orders) == 0 {
		q.orders = []order{{column: q.entity.PrimaryKey, desc: true}}
	} else {
		for i := range q.orders {
			q.orders[i].desc = !q.orders[i].desc
		}
	}
	q.limit = 1
	recs, err := q.All(ctx)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// Exists reports whether any row matches the chain.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	v, err := b.aggregate(ctx, "1")
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Count returns the number of matching rows.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	v, err := b.aggregate(ctx, "COUNT(*)")
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// Sum returns the sum of the named column over the matching rows.
func (b *Builder) Sum(ctx context.Context, column string) (float64, error) {
	v, err := b.aggregate(ctx, "SUM("+column+")")
	if err != nil {
		return 0, err
	}
	return toFloat64(v)
}

// Average returns the average of the named column over the matching rows.
func (b *Builder) Average(ctx context.Context, column string) (float64, error) {
	v, err := b.aggregate(ctx, "AVG("+column+")")
	if err != nil {
		return 0, err
	}
	return toFloat64(v)
}

// Minimum returns the smallest value of the named column.
func (b *Builder) Minimum(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MIN("+column+")")
}

// Maximum returns the largest value of the named column.
func (b *Builder) Maximum(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MAX("+column+")")
}

// aggregate executes the chain with the select list overridden by a single
// aggregate expression. The override is applied to a copy, so it never
// leaks into subsequent calls on the receiver.
func (b *Builder) aggregate(ctx context.Context, expr string) (any, error) {
	if b.err != nil {
		return nil, b.err
	}
	q := b.clone()
	q.selects = []string{expr}
	q.includes = nil
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	return b.store.conn(ctx).Scalar(ctx, query, args)
}

// Pluck returns the values of a single column over the matching rows.
func (b *Builder) Pluck(ctx context.Context, column string) ([]any, error) {
	if b.err != nil {
		return nil, b.err
	}
	q := b.clone()
	q.selects = []string{column}
	q.includes = nil
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	_, rows, err := b.store.queryRows(ctx, b.entity.Table, query, args)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			values = append(values, row[0])
		}
	}
	return values, nil
}

// UpdateAll applies the assignments to every matching row with a single
// bulk UPDATE, bypassing validation and callbacks. Assignments are emitted
// in sorted column order; their parameters precede the WHERE parameters.
func (b *Builder) UpdateAll(ctx context.Context, assignments Eq) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if len(assignments) == 0 {
		return 0, NewInvalidConditionError("empty assignment map", assignments)
	}
	var (
		sets []string
		args []any
	)
	for _, col := range sortedKeys(assignments) {
		sets = append(sets, col+" = ?")
		args = append(args, assignments[col])
	}
	query := "UPDATE " + b.entity.Table + " SET " + strings.Join(sets, ", ")
	if clause, a := b.conds.clause(); clause != "" {
		query += " WHERE " + clause
		args = append(args, a...)
	}
	res, err := b.store.conn(ctx).Exec(ctx, query, args)
	if err != nil {
		return 0, translateDBError(err)
	}
	b.store.bumpGeneration(b.entity.Table)
	return res.AffectedRows, nil
}

// DeleteAll deletes every matching row with a single bulk DELETE,
// bypassing callbacks and dependent cascades.
func (b *Builder) DeleteAll(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	query := "DELETE FROM " + b.entity.Table
	var args []any
	if clause, a := b.conds.clause(); clause != "" {
		query += " WHERE " + clause
		args = a
	}
	res, err := b.store.conn(ctx).Exec(ctx, query, args)
	if err != nil {
		return 0, translateDBError(err)
	}
	b.store.bumpGeneration(b.entity.Table)
	return res.AffectedRows, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("takarik: cannot read %T as integer", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("takarik: cannot read %T as float", v)
}
