package takarik

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/takarik/takarik-data-sub002/schema"
	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

// Registry holds the entity descriptors, association metadata, validators,
// and lifecycle callbacks of every registered entity type. It is populated
// at startup and read-only afterward; late registrations are serialized
// behind a writer lock while reads stay cheap.
type Registry struct {
	mu         sync.RWMutex
	entities   map[string]*schema.Entity
	assocs     map[string]map[string]*assoc.Descriptor
	assocOrder map[string][]string
	// targets maps association name -> target entity name for deferred
	// resolution (the association target registry).
	targets map[string]string
	// poly maps a discriminator string to its entity name (the polymorphic
	// class registry).
	poly       map[string]string
	validators map[string][]Validator
	callbacks  map[string]map[Phase][]*callback
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:   make(map[string]*schema.Entity),
		assocs:     make(map[string]map[string]*assoc.Descriptor),
		assocOrder: make(map[string][]string),
		targets:    make(map[string]string),
		poly:       make(map[string]string),
		validators: make(map[string][]Validator),
		callbacks:  make(map[string]map[Phase][]*callback),
	}
}

// Register adds an entity descriptor and its associations to the registry.
// Association defaults that depend on the owner type (foreign keys of
// has-many/has-one, join-table names) are resolved here.
func (r *Registry) Register(e *schema.Entity, defs ...assoc.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.Name]; ok {
		return fmt.Errorf("takarik: entity %q already registered", e.Name)
	}
	r.entities[e.Name] = e
	r.poly[e.Name] = e.Name
	r.assocs[e.Name] = make(map[string]*assoc.Descriptor)
	for _, def := range defs {
		d := def.Descriptor()
		if _, ok := r.assocs[e.Name][d.Name]; ok {
			return fmt.Errorf("takarik: association %q already registered on %s", d.Name, e.Name)
		}
		if d.ForeignKey == "" {
			switch d.Kind {
			case assoc.HasOneKind, assoc.HasManyKind, assoc.HasManyThroughKind, assoc.HasAndBelongsToManyKind:
				d.ForeignKey = schema.ForeignKey(e.Name)
			}
		}
		if d.Kind == assoc.HasAndBelongsToManyKind && d.JoinTable == "" {
			d.JoinTable = JoinTableName(e.Name, d.Target)
		}
		r.assocs[e.Name][d.Name] = d
		r.assocOrder[e.Name] = append(r.assocOrder[e.Name], d.Name)
		if d.Target != "" {
			r.targets[d.Name] = d.Target
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(e *schema.Entity, defs ...assoc.Definition) {
	if err := r.Register(e, defs...); err != nil {
		panic(err)
	}
}

// Entity returns the descriptor of the named entity type.
func (r *Registry) Entity(name string) (*schema.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("takarik: unknown entity %q", name)
	}
	return e, nil
}

// Association returns the descriptor of the named association on the
// given entity type.
func (r *Registry) Association(entity, name string) (*assoc.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.assocs[entity][name]
	if !ok {
		return nil, NewAssociationNotFoundError(entity, name)
	}
	return d, nil
}

// Associations returns every association of an entity type in
// registration order.
func (r *Registry) Associations(entity string) []*assoc.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.assocOrder[entity]
	descs := make([]*assoc.Descriptor, 0, len(names))
	for _, name := range names {
		descs = append(descs, r.assocs[entity][name])
	}
	return descs
}

// AssociationTarget resolves an association name to its target entity name
// through the association target registry.
func (r *Registry) AssociationTarget(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	return t, ok
}

// PolymorphicEntity resolves a discriminator string read from a type column
// to its entity descriptor.
func (r *Registry) PolymorphicEntity(discriminator string) (*schema.Entity, error) {
	r.mu.RLock()
	name, ok := r.poly[discriminator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("takarik: unknown polymorphic type %q", discriminator)
	}
	return r.Entity(name)
}

// A JoinKind selects the SQL join operator.
type JoinKind int

// Join kinds.
const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

// SQL returns the SQL text of the join operator.
func (k JoinKind) SQL() string {
	switch k {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	default:
		return "INNER JOIN"
	}
}

// A JoinClause is one resolved JOIN of a query.
type JoinClause struct {
	Kind  JoinKind
	Table string
	On    string
}

// ResolveJoin resolves an association name on an entity type into the JOIN
// clauses reaching the target table. Belongs-to resolves to an INNER JOIN
// unless optional; has-one and has-many resolve to LEFT JOIN, since the
// owner may have zero children. Through and many-to-many associations
// resolve to two clauses via the intermediate table. Polymorphic
// associations cannot be joined and must be resolved by two-step lookup.
func (r *Registry) ResolveJoin(owner, name string) ([]JoinClause, *schema.Entity, error) {
	ownerEntity, err := r.Entity(owner)
	if err != nil {
		return nil, nil, err
	}
	d, err := r.Association(owner, name)
	if err != nil {
		return nil, nil, err
	}
	switch d.Kind {
	case assoc.BelongsToPolymorphicKind, assoc.HasManyPolymorphicKind:
		return nil, nil, NewUnsupportedJoinError(owner, name, "polymorphic associations cannot be joined; resolve via two-step lookup")
	case assoc.HasManyThroughKind:
		return r.resolveThroughJoin(ownerEntity, d)
	case assoc.HasAndBelongsToManyKind:
		target, err := r.Entity(d.Target)
		if err != nil {
			return nil, nil, err
		}
		return []JoinClause{
			{
				Kind:  LeftJoin,
				Table: d.JoinTable,
				On:    fmt.Sprintf("%s.%s = %s.%s", ownerEntity.Table, ownerEntity.PrimaryKey, d.JoinTable, d.ForeignKey),
			},
			{
				Kind:  LeftJoin,
				Table: target.Table,
				On:    fmt.Sprintf("%s.%s = %s.%s", d.JoinTable, d.AssociationForeignKey, target.Table, target.PrimaryKey),
			},
		}, target, nil
	default:
		target, err := r.Entity(d.Target)
		if err != nil {
			return nil, nil, err
		}
		clause, err := r.directJoin(ownerEntity, d, target)
		if err != nil {
			return nil, nil, err
		}
		return []JoinClause{clause}, target, nil
	}
}

// directJoin builds the single-hop JOIN clause for belongs-to, has-one,
// and has-many associations.
func (r *Registry) directJoin(owner *schema.Entity, d *assoc.Descriptor, target *schema.Entity) (JoinClause, error) {
	switch d.Kind {
	case assoc.BelongsToKind:
		kind := InnerJoin
		if d.Optional {
			kind = LeftJoin
		}
		return JoinClause{
			Kind:  kind,
			Table: target.Table,
			On:    fmt.Sprintf("%s.%s = %s.%s", owner.Table, d.ForeignKey, target.Table, d.PrimaryKey),
		}, nil
	case assoc.HasOneKind, assoc.HasManyKind:
		return JoinClause{
			Kind:  LeftJoin,
			Table: target.Table,
			On:    fmt.Sprintf("%s.%s = %s.%s", owner.Table, d.PrimaryKey, target.Table, d.ForeignKey),
		}, nil
	default:
		return JoinClause{}, NewUnsupportedJoinError(owner.Name, d.Name, "association kind "+d.Kind.String()+" has no direct join")
	}
}

// resolveThroughJoin builds the two-hop JOIN of a has-many-through
// association: owner -> intermediate -> target. The second hop reuses the
// association registered on the intermediate entity under the same name, or
// its singular form.
func (r *Registry) resolveThroughJoin(owner *schema.Entity, d *assoc.Descriptor) ([]JoinClause, *schema.Entity, error) {
	midDesc, err := r.Association(owner.Name, d.Through)
	if err != nil {
		return nil, nil, err
	}
	if midDesc.Kind.Polymorphic() {
		return nil, nil, NewUnsupportedJoinError(owner.Name, d.Name, "through association "+d.Through+" is polymorphic")
	}
	mid, err := r.Entity(midDesc.Target)
	if err != nil {
		return nil, nil, err
	}
	first, err := r.directJoin(owner, midDesc, mid)
	if err != nil {
		return nil, nil, err
	}
	// A through join is always outer: the intermediate may have no rows.
	first.Kind = LeftJoin
	srcDesc, err := r.Association(mid.Name, d.Name)
	if err != nil {
		if srcDesc, err = r.Association(mid.Name, inflect.Singularize(d.Name)); err != nil {
			return nil, nil, NewAssociationNotFoundError(mid.Name, d.Name)
		}
	}
	if srcDesc.Kind.Polymorphic() {
		return nil, nil, NewUnsupportedJoinError(mid.Name, srcDesc.Name, "polymorphic associations cannot be joined; resolve via two-step lookup")
	}
	target, err := r.Entity(srcDesc.Target)
	if err != nil {
		return nil, nil, err
	}
	second, err := r.directJoin(mid, srcDesc, target)
	if err != nil {
		return nil, nil, err
	}
	second.Kind = LeftJoin
	return []JoinClause{first, second}, target, nil
}

// JoinTableName derives the join-table name of a many-to-many association:
// both entity names pluralized, concatenated in lexicographic order.
func JoinTableName(a, b string) string {
	t := []string{schema.TableName(a), schema.TableName(b)}
	sort.Strings(t)
	return t[0] + "_" + t[1]
}
