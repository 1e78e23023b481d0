// Package assoc provides fluent builders for association descriptors.
//
// Associations describe the relationships between entity types and are
// declared once, at entity registration time:
//
//	assoc.BelongsTo("author", "User")
//	assoc.HasMany("posts", "Post").Dependent(assoc.DependentDestroy)
//	assoc.HasOne("profile", "Profile")
//	assoc.HasMany("comments", "Comment").Through("posts")
//	assoc.ManyToMany("tags", "Tag")
//	assoc.BelongsToPolymorphic("commentable")
//	assoc.HasMany("comments", "Comment").As("commentable")
//
// Descriptors are immutable after registration.
package assoc

import (
	"github.com/go-openapi/inflect"
)

// A Kind identifies the shape of an association.
type Kind int

// Association kinds.
const (
	KindInvalid Kind = iota
	BelongsToKind
	HasOneKind
	HasManyKind
	HasManyThroughKind
	HasAndBelongsToManyKind
	BelongsToPolymorphicKind
	HasManyPolymorphicKind
)

var kindNames = [...]string{
	KindInvalid:              "invalid",
	BelongsToKind:            "belongs_to",
	HasOneKind:               "has_one",
	HasManyKind:              "has_many",
	HasManyThroughKind:       "has_many_through",
	HasAndBelongsToManyKind:  "has_and_belongs_to_many",
	BelongsToPolymorphicKind: "belongs_to_polymorphic",
	HasManyPolymorphicKind:   "has_many_polymorphic",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Collection reports whether the association resolves to many records.
func (k Kind) Collection() bool {
	switch k {
	case HasManyKind, HasManyThroughKind, HasAndBelongsToManyKind, HasManyPolymorphicKind:
		return true
	}
	return false
}

// Polymorphic reports whether the association is resolved through a
// discriminator column rather than a fixed target type.
func (k Kind) Polymorphic() bool {
	return k == BelongsToPolymorphicKind || k == HasManyPolymorphicKind
}

// A Dependent value is the cascade policy applied to associated rows when
// the owning record is destroyed.
type Dependent int

// Dependent policies.
const (
	// NoDependent leaves associated rows untouched.
	NoDependent Dependent = iota

	// DependentDestroy loads each associated record and destroys it through
	// its own full lifecycle, including nested dependents.
	DependentDestroy

	// DependentDeleteAll issues a single bulk DELETE scoped by foreign key,
	// bypassing callbacks on the associated records.
	DependentDeleteAll

	// DependentNullify issues a single bulk UPDATE setting the foreign key
	// to NULL.
	DependentNullify
)

// A Descriptor is the static metadata describing a relationship between two
// entity types. It is registered once per entity type at definition time and
// read-only thereafter.
type Descriptor struct {
	// Name is the association name, e.g. "posts".
	Name string

	// Kind is the association shape.
	Kind Kind

	// Target is the target entity type name. Empty for polymorphic
	// belongs-to associations, which are resolved dynamically through the
	// discriminator column.
	Target string

	// ForeignKey is the foreign-key column. For belongs-to it lives on the
	// owner; for has-one/has-many it lives on the target; for many-to-many
	// it is the owner-side column of the join table.
	ForeignKey string

	// AssociationForeignKey is the target-side column of a many-to-many
	// join table.
	AssociationForeignKey string

	// PrimaryKey is the referenced primary-key column. Defaults to "id".
	PrimaryKey string

	// Dependent is the cascade policy applied on destroy.
	Dependent Dependent

	// Optional marks a belongs-to association whose owner row may exist
	// without a target. Optional belongs-to joins use LEFT JOIN.
	Optional bool

	// Through names the association on the owner used as the intermediate
	// hop of a has-many-through association.
	Through string

	// JoinTable is the explicit join-table name of a many-to-many
	// association. Derived deterministically when empty.
	JoinTable string

	// TypeColumn is the polymorphic discriminator column.
	TypeColumn string
}

// A Definition is anything that yields an association descriptor.
// All builders in this package implement it.
type Definition interface {
	Descriptor() *Descriptor
}

// belongsToBuilder builds belongs-to descriptors.
type belongsToBuilder struct {
	desc *Descriptor
}

// BelongsTo declares an association where the owner carries the foreign key
// referencing target. The foreign key defaults to "{name}_id".
func BelongsTo(name, target string) *belongsToBuilder { //nolint:revive
	return &belongsToBuilder{desc: &Descriptor{
		Name:   name,
		Kind:   BelongsToKind,
		Target: target,
	}}
}

// ForeignKey overrides the derived foreign-key column.
func (b *belongsToBuilder) ForeignKey(column string) *belongsToBuilder {
	b.desc.ForeignKey = column
	return b
}

// PrimaryKey overrides the referenced primary-key column.
func (b *belongsToBuilder) PrimaryKey(column string) *belongsToBuilder {
	b.desc.PrimaryKey = column
	return b
}

// Optional marks the association as optional; the owning row may carry a
// NULL foreign key, and joins become LEFT JOIN.
func (b *belongsToBuilder) Optional() *belongsToBuilder {
	b.desc.Optional = true
	return b
}

// Descriptor returns the built descriptor with defaults applied.
func (b *belongsToBuilder) Descriptor() *Descriptor {
	d := b.desc
	if d.ForeignKey == "" {
		d.ForeignKey = inflect.Underscore(d.Name) + "_id"
	}
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	return d
}

// hasBuilder builds has-one and has-many descriptors, including the
// through and polymorphic variants.
type hasBuilder struct {
	desc *Descriptor
}

// HasOne declares an association where the target carries the foreign key
// and at most one target row exists per owner.
func HasOne(name, target string) *hasBuilder { //nolint:revive
	return &hasBuilder{desc: &Descriptor{
		Name:   name,
		Kind:   HasOneKind,
		Target: target,
	}}
}

// HasMany declares an association where the target carries the foreign key
// and any number of target rows may exist per owner.
func HasMany(name, target string) *hasBuilder { //nolint:revive
	return &hasBuilder{desc: &Descriptor{
		Name:   name,
		Kind:   HasManyKind,
		Target: target,
	}}
}

// ForeignKey overrides the derived foreign-key column on the target.
func (b *hasBuilder) ForeignKey(column string) *hasBuilder {
	b.desc.ForeignKey = column
	return b
}

// PrimaryKey overrides the owner primary-key column the foreign key
// references.
func (b *hasBuilder) PrimaryKey(column string) *hasBuilder {
	b.desc.PrimaryKey = column
	return b
}

// Dependent sets the cascade policy applied when the owner is destroyed.
func (b *hasBuilder) Dependent(d Dependent) *hasBuilder {
	b.desc.Dependent = d
	return b
}

// Through turns the association into a two-hop has-many-through, using the
// named association on the owner as the intermediate.
func (b *hasBuilder) Through(association string) *hasBuilder {
	b.desc.Kind = HasManyThroughKind
	b.desc.Through = association
	return b
}

// As turns the association into the has-many side of a polymorphic pair.
// The target rows carry "{as}_id" and "{as}_type" columns, and the
// discriminator column selects rows belonging to the owner's type.
func (b *hasBuilder) As(as string) *hasBuilder {
	b.desc.Kind = HasManyPolymorphicKind
	b.desc.ForeignKey = inflect.Underscore(as) + "_id"
	b.desc.TypeColumn = inflect.Underscore(as) + "_type"
	return b
}

// Descriptor returns the built descriptor. The foreign key defaults to the
// owner's conventional key and is resolved at registration time, when the
// owner type is known.
func (b *hasBuilder) Descriptor() *Descriptor {
	d := b.desc
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	return d
}

// m2mBuilder builds has-and-belongs-to-many descriptors.
type m2mBuilder struct {
	desc *Descriptor
}

// ManyToMany declares a has-and-belongs-to-many association resolved
// through a join table keyed by two foreign keys.
func ManyToMany(name, target string) *m2mBuilder { //nolint:revive
	return &m2mBuilder{desc: &Descriptor{
		Name:   name,
		Kind:   HasAndBelongsToManyKind,
		Target: target,
	}}
}

// JoinTable overrides the derived join-table name.
func (b *m2mBuilder) JoinTable(table string) *m2mBuilder {
	b.desc.JoinTable = table
	return b
}

// ForeignKey overrides the owner-side column of the join table.
func (b *m2mBuilder) ForeignKey(column string) *m2mBuilder {
	b.desc.ForeignKey = column
	return b
}

// AssociationForeignKey overrides the target-side column of the join table.
func (b *m2mBuilder) AssociationForeignKey(column string) *m2mBuilder {
	b.desc.AssociationForeignKey = column
	return b
}

// Descriptor returns the built descriptor. The foreign keys and join-table
// name are derived at registration time, when the owner type is known.
func (b *m2mBuilder) Descriptor() *Descriptor {
	d := b.desc
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	if d.AssociationForeignKey == "" {
		d.AssociationForeignKey = inflect.Underscore(d.Target) + "_id"
	}
	return d
}

// polyBuilder builds polymorphic belongs-to descriptors.
type polyBuilder struct {
	desc *Descriptor
}

// BelongsToPolymorphic declares a belongs-to association whose target type
// is read at runtime from the "{name}_type" discriminator column. The
// association cannot be joined in SQL; it is resolved by a two-step lookup.
func BelongsToPolymorphic(name string) *polyBuilder { //nolint:revive
	return &polyBuilder{desc: &Descriptor{
		Name: name,
		Kind: BelongsToPolymorphicKind,
	}}
}

// ForeignKey overrides the derived foreign-key column.
func (b *polyBuilder) ForeignKey(column string) *polyBuilder {
	b.desc.ForeignKey = column
	return b
}

// TypeColumn overrides the derived discriminator column.
func (b *polyBuilder) TypeColumn(column string) *polyBuilder {
	b.desc.TypeColumn = column
	return b
}

// Optional marks the association as optional.
func (b *polyBuilder) Optional() *polyBuilder {
	b.desc.Optional = true
	return b
}

// Descriptor returns the built descriptor with defaults applied.
func (b *polyBuilder) Descriptor() *Descriptor {
	d := b.desc
	if d.ForeignKey == "" {
		d.ForeignKey = inflect.Underscore(d.Name) + "_id"
	}
	if d.TypeColumn == "" {
		d.TypeColumn = inflect.Underscore(d.Name) + "_type"
	}
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	return d
}
