package takarik

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/takarik/takarik-data-sub002/schema"
)

// A State is the persistence state of a record.
type State int

// Record states. A record never transitions back from StateDeleted.
const (
	StateNew State = iota
	StatePersisted
	StateDeleted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePersisted:
		return "persisted"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// attributes is an ordered column-name-to-value map owned by exactly one
// record instance.
type attributes struct {
	order  []string
	values map[string]any
}

func newAttributes() *attributes {
	return &attributes{values: make(map[string]any)}
}

func (a *attributes) get(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

func (a *attributes) set(name string, v any) {
	if _, ok := a.values[name]; !ok {
		a.order = append(a.order, name)
	}
	a.values[name] = v
}

func (a *attributes) names() []string {
	return a.order
}

// A Record is one row of an entity type, loaded or pending persistence.
// Attributes are mutated only through the tracked setter, which records the
// column name into the changed-set; the changed-set is cleared on
// successful persistence. Records are not safe for concurrent use.
type Record struct {
	store    *Store
	entity   *schema.Entity
	attrs    *attributes
	changed  map[string]struct{}
	state    State
	readonly bool
	strict   bool
	// loaded association cache; a present entry with a nil value records
	// an outer-join miss or an absent belongs-to target.
	assocs map[string]any
	errs   Errors
}

func newRecord(store *Store, entity *schema.Entity) *Record {
	return &Record{
		store:   store,
		entity:  entity,
		attrs:   newAttributes(),
		changed: make(map[string]struct{}),
		assocs:  make(map[string]any),
		errs:    Errors{},
	}
}

// Entity returns the entity descriptor of the record.
func (r *Record) Entity() *schema.Entity { return r.entity }

// State returns the persistence state.
func (r *Record) State() State { return r.state }

// IsNewRecord reports whether the record has never been persisted.
func (r *Record) IsNewRecord() bool { return r.state == StateNew }

// IsPersisted reports whether the record is backed by a database row.
func (r *Record) IsPersisted() bool { return r.state == StatePersisted }

// IsDeleted reports whether the record was destroyed.
func (r *Record) IsDeleted() bool { return r.state == StateDeleted }

// MarkReadOnly marks the record read-only; every subsequent mutating call
// fails with ReadOnlyRecordError.
func (r *Record) MarkReadOnly() { r.readonly = true }

// ReadOnly reports whether the record is marked read-only.
func (r *Record) ReadOnly() bool { return r.readonly }

// MarkStrictLoading marks the record for strict loading; lazy association
// access that was not eager-loaded fails with StrictLoadingViolationError.
func (r *Record) MarkStrictLoading() { r.strict = true }

// Errors returns the validation errors recorded by the last save attempt.
func (r *Record) Errors() Errors { return r.errs }

// ID returns the primary-key value, or nil when unset.
func (r *Record) ID() any {
	v, _ := r.attrs.get(r.entity.PrimaryKey)
	return v
}

// AttributeNames returns the assigned column names in assignment order.
func (r *Record) AttributeNames() []string { return r.attrs.names() }

// Get returns the raw value of the named attribute.
func (r *Record) Get(name string) (any, bool) {
	return r.attrs.get(name)
}

// Set assigns an attribute through the tracked setter. The value is
// normalized against the column's declared type, and the column name is
// recorded into the changed-set.
func (r *Record) Set(name string, value any) error {
	col, ok := r.entity.Column(name)
	if !ok {
		return fmt.Errorf("takarik: unknown column %q on %s", name, r.entity.Name)
	}
	v, err := normalizeValue(col, value)
	if err != nil {
		return err
	}
	r.attrs.set(name, v)
	r.changed[name] = struct{}{}
	return nil
}

// Assign applies every pair of attrs through the tracked setter, in sorted
// key order.
func (r *Record) Assign(attrs Eq) error {
	for _, name := range sortedKeys(attrs) {
		if err := r.Set(name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Changed returns the column names assigned since the last successful
// persistence, in assignment order.
func (r *Record) Changed() []string {
	names := make([]string, 0, len(r.changed))
	for _, name := range r.attrs.names() {
		if _, ok := r.changed[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// IsChanged reports whether the named column is in the changed-set.
func (r *Record) IsChanged(name string) bool {
	_, ok := r.changed[name]
	return ok
}

func (r *Record) clearChanged() {
	r.changed = make(map[string]struct{})
}

// loadColumn assigns an attribute from a database row without touching the
// changed-set.
func (r *Record) loadColumn(name string, value any) error {
	col, ok := r.entity.Column(name)
	if !ok {
		// Joined or computed columns outside the schema are kept raw.
		r.attrs.set(name, value)
		return nil
	}
	v, err := normalizeValue(col, value)
	if err != nil {
		return err
	}
	r.attrs.set(name, v)
	return nil
}

// String returns the named attribute as a string.
func (r *Record) String(name string) (string, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("takarik: attribute %q is %T, not string", name, v)
	}
	return s, nil
}

// Int returns the named attribute as an int64.
func (r *Record) Int(name string) (int64, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("takarik: attribute %q is %T, not int", name, v)
	}
	return n, nil
}

// Float returns the named attribute as a float64.
func (r *Record) Float(name string) (float64, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("takarik: attribute %q is %T, not float", name, v)
	}
	return f, nil
}

// Bool returns the named attribute as a bool.
func (r *Record) Bool(name string) (bool, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("takarik: attribute %q is %T, not bool", name, v)
	}
	return b, nil
}

// Time returns the named attribute as a time.Time.
func (r *Record) Time(name string) (time.Time, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return time.Time{}, nil
	}
	ts, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("takarik: attribute %q is %T, not time", name, v)
	}
	return ts, nil
}

// Bytes returns the named attribute as a byte slice.
func (r *Record) Bytes(name string) ([]byte, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("takarik: attribute %q is %T, not bytes", name, v)
	}
	return b, nil
}

// UUID returns the named attribute as a uuid.UUID.
func (r *Record) UUID(name string) (uuid.UUID, error) {
	v, ok := r.attrs.get(name)
	if !ok || v == nil {
		return uuid.Nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("takarik: attribute %q is %T, not uuid", name, v)
	}
	return uuid.Parse(s)
}

// cacheAssociation stores a loaded association on the record. A nil value
// records a definite miss.
func (r *Record) cacheAssociation(name string, v any) {
	r.assocs[name] = v
}

// AssociationLoaded reports whether the named association is cached.
func (r *Record) AssociationLoaded(name string) bool {
	_, ok := r.assocs[name]
	return ok
}

// normalizeValue coerces a value to the canonical in-memory form of the
// column's declared type. Database drivers hand back wider types than were
// written (int64 for bools, []byte for strings), so load paths share this.
func normalizeValue(col schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch col.Type {
	case schema.TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		}
	case schema.TypeInt:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case uint:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		}
	case schema.TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case schema.TypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case schema.TypeTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			return parseTime(v)
		case []byte:
			return parseTime(string(v))
		}
	case schema.TypeBytes:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case schema.TypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v.String(), nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("takarik: column %q: %w", col.Name, err)
			}
			return u.String(), nil
		case []byte:
			u, err := uuid.FromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("takarik: column %q: %w", col.Name, err)
			}
			return u.String(), nil
		}
	}
	return nil, fmt.Errorf("takarik: cannot assign %T to %s column %q", value, col.Type, col.Name)
}

// timeFormats are the accepted textual timestamp encodings, tried in order.
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("takarik: cannot parse timestamp %q", s)
}

func sortedKeys(m Eq) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Association returns the named association's records, loading them lazily
// when not cached. Unique associations yield *Record (nil on a miss);
// collections yield []*Record. Lazy access on a strict-loading record fails
// with StrictLoadingViolationError.
func (r *Record) Association(ctx context.Context, name string) (any, error) {
	if v, ok := r.assocs[name]; ok {
		return v, nil
	}
	if r.strict {
		return nil, NewStrictLoadingViolationError(r.entity.Name, name)
	}
	v, err := r.store.loadAssociation(ctx, r, name)
	if err != nil {
		return nil, err
	}
	r.cacheAssociation(name, v)
	return v, nil
}

// AssociationOne is Association for unique associations.
func (r *Record) AssociationOne(ctx context.Context, name string) (*Record, error) {
	v, err := r.Association(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("takarik: association %q on %s is a collection", name, r.entity.Name)
	}
	return rec, nil
}

// AssociationMany is Association for collection associations.
func (r *Record) AssociationMany(ctx context.Context, name string) ([]*Record, error) {
	v, err := r.Association(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	recs, ok := v.([]*Record)
	if !ok {
		return nil, fmt.Errorf("takarik: association %q on %s is not a collection", name, r.entity.Name)
	}
	return recs, nil
}
