package takarik

import (
	"context"
	"errors"
	"fmt"

	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

// Destroy deletes the record's row and cascades to dependent associations
// inside the same transaction. It returns false without error when the
// record was never persisted or its row was already gone. Destroying an
// already destroyed record is a no-op.
func (r *Record) Destroy(ctx context.Context) (bool, error) {
	ok, err := r.destroy(ctx)
	if errors.Is(err, ErrNoRowsAffected) {
		return false, nil
	}
	return ok, err
}

// DestroyX is Destroy returning an error for every failure instead of the
// false result.
func (r *Record) DestroyX(ctx context.Context) error {
	ok, err := r.destroy(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *Record) destroy(ctx context.Context) (bool, error) {
	if r.readonly {
		return false, NewReadOnlyRecordError(r.entity.Name)
	}
	switch {
	case r.IsDeleted():
		return true, nil
	case r.IsNewRecord():
		return false, nil
	}
	reg := r.store.registry
	if err := reg.runCallbacks(ctx, r, BeforeDestroy, ActionDestroy); err != nil {
		return false, err
	}
	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		onTxDone(ctx,
			func(ctx context.Context) { _ = reg.runCallbacks(context.WithoutCancel(ctx), r, AfterCommit, ActionDestroy) },
			func(ctx context.Context) { _ = reg.runCallbacks(context.WithoutCancel(ctx), r, AfterRollback, ActionDestroy) },
		)
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.entity.Table, r.entity.PrimaryKey)
		res, err := r.store.conn(ctx).Exec(ctx, query, []any{r.ID()})
		if err != nil {
			return translateDBError(err)
		}
		if res.AffectedRows == 0 {
			return ErrNoRowsAffected
		}
		r.store.bumpGeneration(r.entity.Table)
		if err := r.cascade(ctx); err != nil {
			return err
		}
		r.state = StateDeleted
		return reg.runCallbacks(ctx, r, AfterDestroy, ActionDestroy)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// cascade applies every dependent policy of the record's associations, in
// registration order. Join-table rows of many-to-many associations are
// always removed.
func (r *Record) cascade(ctx context.Context) error {
	for _, d := range r.store.registry.Associations(r.entity.Name) {
		switch d.Kind {
		case assoc.HasAndBelongsToManyKind:
			query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", d.JoinTable, d.ForeignKey)
			if _, err := r.store.conn(ctx).Exec(ctx, query, []any{r.ID()}); err != nil {
				return translateDBError(err)
			}
			r.store.bumpGeneration(d.JoinTable)
			continue
		case assoc.BelongsToKind, assoc.BelongsToPolymorphicKind, assoc.HasManyThroughKind:
			continue
		}
		switch d.Dependent {
		case assoc.DependentDestroy:
			if err := r.cascadeDestroy(ctx, d); err != nil {
				return err
			}
		case assoc.DependentDeleteAll:
			if err := r.cascadeBulk(ctx, d, true); err != nil {
				return err
			}
		case assoc.DependentNullify:
			if err := r.cascadeBulk(ctx, d, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// cascadeDestroy loads each dependent record and destroys it through its
// own full lifecycle, including nested dependents.
func (r *Record) cascadeDestroy(ctx context.Context, d *assoc.Descriptor) error {
	cond := Eq{d.ForeignKey: r.ID()}
	if d.Kind == assoc.HasManyPolymorphicKind {
		cond[d.TypeColumn] = r.entity.Name
	}
	deps, err := r.store.Query(d.Target).Where(cond).All(ctx)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := dep.DestroyX(ctx); err != nil {
			return err
		}
	}
	return nil
}

// cascadeBulk deletes or nullifies dependent rows with one statement,
// bypassing their callbacks.
func (r *Record) cascadeBulk(ctx context.Context, d *assoc.Descriptor, del bool) error {
	target, err := r.store.registry.Entity(d.Target)
	if err != nil {
		return err
	}
	var (
		query string
		args  []any
	)
	if del {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", target.Table, d.ForeignKey)
	} else {
		set := d.ForeignKey + " = NULL"
		if d.Kind == assoc.HasManyPolymorphicKind {
			set += ", " + d.TypeColumn + " = NULL"
		}
		query = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", target.Table, set, d.ForeignKey)
	}
	args = append(args, r.ID())
	if d.Kind == assoc.HasManyPolymorphicKind {
		query += fmt.Sprintf(" AND %s = ?", d.TypeColumn)
		args = append(args, r.entity.Name)
	}
	if _, err := r.store.conn(ctx).Exec(ctx, query, args); err != nil {
		return translateDBError(err)
	}
	r.store.bumpGeneration(target.Table)
	return nil
}
