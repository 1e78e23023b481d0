package takarik

import (
	"fmt"

	"github.com/takarik/takarik-data-sub002/schema"
)

// scanPlain materializes unjoined rows, one record per row.
func (b *Builder) scanPlain(columns []string, rows [][]any) ([]*Record, error) {
	recs := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec := newRecord(b.store, b.entity)
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			if err := rec.loadColumn(col, row[i]); err != nil {
				return nil, err
			}
		}
		rec.state = StatePersisted
		recs = append(recs, rec)
	}
	return recs, nil
}

// scanJoined splits {table}_{column} aliased rows back into per-entity
// attribute maps. Aliases are resolved per declared schema column instead
// of by generic prefix stripping, so a column whose name happens to start
// with another table's name cannot be misattributed. Rows sharing a
// primary key collapse into one record; eagerly included associations
// accumulate into its association cache, with a null included primary key
// recording an outer-join miss.
func (b *Builder) scanJoined(columns []string, rows [][]any) ([]*Record, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col] = i
	}
	var (
		recs []*Record
		byPK = make(map[string]*Record)
		seen = make(map[string]map[string]struct{})
	)
	for _, row := range rows {
		pk, ok := aliasValue(row, index, b.entity, b.entity.PrimaryKey)
		if !ok || pk == nil {
			continue
		}
		key := fmt.Sprint(pk)
		rec := byPK[key]
		if rec == nil {
			var err error
			rec, err = loadAliased(b.store, b.entity, row, index)
			if err != nil {
				return nil, err
			}
			byPK[key] = rec
			recs = append(recs, rec)
		}
		for _, inc := range b.includes {
			if err := b.scanInclude(rec, key, inc, row, index, seen); err != nil {
				return nil, err
			}
		}
	}
	return recs, nil
}

func (b *Builder) scanInclude(rec *Record, pk string, inc include, row []any, index map[string]int, seen map[string]map[string]struct{}) error {
	incPK, _ := aliasValue(row, index, inc.target, inc.target.PrimaryKey)
	if !inc.desc.Kind.Collection() {
		if rec.AssociationLoaded(inc.name) {
			return nil
		}
		if incPK == nil {
			rec.cacheAssociation(inc.name, nil)
			return nil
		}
		child, err := loadAliased(b.store, inc.target, row, index)
		if err != nil {
			return err
		}
		rec.cacheAssociation(inc.name, child)
		return nil
	}
	if !rec.AssociationLoaded(inc.name) {
		rec.cacheAssociation(inc.name, []*Record{})
	}
	if incPK == nil {
		return nil
	}
	dedup := pk + "/" + inc.name
	if seen[dedup] == nil {
		seen[dedup] = make(map[string]struct{})
	}
	childKey := fmt.Sprint(incPK)
	if _, ok := seen[dedup][childKey]; ok {
		return nil
	}
	seen[dedup][childKey] = struct{}{}
	child, err := loadAliased(b.store, inc.target, row, index)
	if err != nil {
		return err
	}
	cached, _ := rec.assocs[inc.name].([]*Record)
	rec.cacheAssociation(inc.name, append(cached, child))
	return nil
}

// loadAliased builds one persisted record from the {table}_{column}
// aliases of a joined row.
func loadAliased(store *Store, e *schema.Entity, row []any, index map[string]int) (*Record, error) {
	rec := newRecord(store, e)
	for _, col := range e.Columns {
		v, ok := aliasValue(row, index, e, col.Name)
		if !ok {
			continue
		}
		if err := rec.loadColumn(col.Name, v); err != nil {
			return nil, err
		}
	}
	rec.state = StatePersisted
	return rec, nil
}

func aliasValue(row []any, index map[string]int, e *schema.Entity, column string) (any, bool) {
	i, ok := index[e.Table+"_"+column]
	if !ok || i >= len(row) {
		return nil, false
	}
	return row[i], true
}
