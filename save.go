package takarik

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/takarik/takarik-data-sub002/dialect"
)

// ErrNoRowsAffected reports a write that matched zero rows. Save and
// Destroy swallow it into a false result; the bang variants return it.
var ErrNoRowsAffected = errors.New("takarik: no rows affected")

// Save persists the record: INSERT for a new record, UPDATE of the changed
// columns for a persisted one. It returns false without error when
// validation fails or the write matched zero rows; validation messages
// remain readable through Errors. Lock conflicts surface as
// StaleObjectError.
func (r *Record) Save(ctx context.Context) (bool, error) {
	ok, err := r.save(ctx, false)
	if errors.Is(err, ErrNoRowsAffected) {
		return false, nil
	}
	return ok, err
}

// SaveX is Save returning ValidationError on invalid records and an error
// for every other failure, instead of the false result.
func (r *Record) SaveX(ctx context.Context) error {
	_, err := r.save(ctx, true)
	return err
}

// Update assigns attrs through the tracked setter and saves.
func (r *Record) Update(ctx context.Context, attrs Eq) (bool, error) {
	if r.readonly {
		return false, NewReadOnlyRecordError(r.entity.Name)
	}
	if err := r.Assign(attrs); err != nil {
		return false, err
	}
	return r.Save(ctx)
}

// UpdateX is Update with SaveX semantics.
func (r *Record) UpdateX(ctx context.Context, attrs Eq) error {
	if r.readonly {
		return NewReadOnlyRecordError(r.entity.Name)
	}
	if err := r.Assign(attrs); err != nil {
		return err
	}
	return r.SaveX(ctx)
}

func (r *Record) save(ctx context.Context, bang bool) (bool, error) {
	if r.readonly {
		return false, NewReadOnlyRecordError(r.entity.Name)
	}
	if r.IsDeleted() {
		return false, fmt.Errorf("takarik: cannot save deleted %s record", r.entity.Name)
	}
	action := ActionUpdate
	if r.IsNewRecord() {
		action = ActionCreate
	}
	reg := r.store.registry
	if err := reg.runCallbacks(ctx, r, BeforeValidation, action); err != nil {
		return false, err
	}
	r.errs = reg.runValidators(r)
	// after_validation runs even when validation failed.
	if err := reg.runCallbacks(ctx, r, AfterValidation, action); err != nil {
		return false, err
	}
	if r.errs.Any() {
		if bang {
			return false, NewValidationError(r.entity.Name, r.errs)
		}
		return false, nil
	}
	if err := reg.runCallbacks(ctx, r, BeforeSave, action); err != nil {
		return false, err
	}
	phase := BeforeUpdate
	if action == ActionCreate {
		phase = BeforeCreate
	}
	if err := reg.runCallbacks(ctx, r, phase, action); err != nil {
		return false, err
	}
	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		onTxDone(ctx,
			func(ctx context.Context) { _ = reg.runCallbacks(context.WithoutCancel(ctx), r, AfterCommit, action) },
			func(ctx context.Context) { _ = reg.runCallbacks(context.WithoutCancel(ctx), r, AfterRollback, action) },
		)
		if action == ActionCreate {
			return r.insert(ctx)
		}
		return r.update(ctx)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// insert writes the assigned columns as a new row. A generated key is
// captured into an unset primary key before the changed-set is cleared.
func (r *Record) insert(ctx context.Context) error {
	cols := r.Changed()
	var query string
	var args []any
	if len(cols) == 0 {
		// MySQL has no DEFAULT VALUES form.
		if r.store.Dialect() == dialect.MySQL {
			query = "INSERT INTO " + r.entity.Table + " () VALUES ()"
		} else {
			query = "INSERT INTO " + r.entity.Table + " DEFAULT VALUES"
		}
	} else {
		marks := strings.Repeat("?,", len(cols))
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			r.entity.Table, strings.Join(cols, ", "), marks[:len(marks)-1])
		args = make([]any, 0, len(cols))
		for _, col := range cols {
			v, _ := r.attrs.get(col)
			args = append(args, v)
		}
	}
	res, err := r.store.conn(ctx).Exec(ctx, query, args)
	if err != nil {
		return translateDBError(err)
	}
	if r.ID() == nil && res.LastInsertID != 0 {
		if err := r.loadColumn(r.entity.PrimaryKey, res.LastInsertID); err != nil {
			return err
		}
	}
	r.clearChanged()
	r.state = StatePersisted
	r.store.bumpGeneration(r.entity.Table)
	reg := r.store.registry
	if err := reg.runCallbacks(ctx, r, AfterCreate, ActionCreate); err != nil {
		return err
	}
	return reg.runCallbacks(ctx, r, AfterSave, ActionCreate)
}

// update writes the changed columns of a persisted row. With optimistic
// locking enabled, the lock column is incremented in-memory before the SET
// clause is built and the old value guards the WHERE clause; a zero-row
// result then means a lost update, and the increment is reverted before
// StaleObjectError surfaces.
func (r *Record) update(ctx context.Context) error {
	cols := make([]string, 0, len(r.changed))
	for _, col := range r.Changed() {
		if col != r.entity.PrimaryKey {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return r.afterUpdate(ctx)
	}
	locking := r.entity.LockColumn != "" && r.entity.HasColumn(r.entity.LockColumn)
	var oldLock any
	if locking {
		oldLock, _ = r.attrs.get(r.entity.LockColumn)
		cur, err := toInt64(oldLock)
		if err != nil {
			return fmt.Errorf("takarik: lock column %q: %w", r.entity.LockColumn, err)
		}
		r.attrs.set(r.entity.LockColumn, cur+1)
		if !r.IsChanged(r.entity.LockColumn) {
			cols = append(cols, r.entity.LockColumn)
		}
	}
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		v, _ := r.attrs.get(col)
		args = append(args, v)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		r.entity.Table, strings.Join(sets, ", "), r.entity.PrimaryKey)
	args = append(args, r.ID())
	if locking {
		// A row whose lock column was never written holds NULL; = NULL
		// matches nothing.
		if oldLock == nil {
			query += fmt.Sprintf(" AND %s IS NULL", r.entity.LockColumn)
		} else {
			query += fmt.Sprintf(" AND %s = ?", r.entity.LockColumn)
			args = append(args, oldLock)
		}
	}
	res, err := r.store.conn(ctx).Exec(ctx, query, args)
	if err != nil {
		if locking {
			r.attrs.set(r.entity.LockColumn, oldLock)
		}
		return translateDBError(err)
	}
	if res.AffectedRows == 0 {
		if locking {
			r.attrs.set(r.entity.LockColumn, oldLock)
			return NewStaleObjectError(r.entity.Name, r.ID())
		}
		return ErrNoRowsAffected
	}
	r.clearChanged()
	r.store.bumpGeneration(r.entity.Table)
	return r.afterUpdate(ctx)
}

func (r *Record) afterUpdate(ctx context.Context) error {
	reg := r.store.registry
	if err := reg.runCallbacks(ctx, r, AfterUpdate, ActionUpdate); err != nil {
		return err
	}
	return reg.runCallbacks(ctx, r, AfterSave, ActionUpdate)
}
