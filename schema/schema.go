// Package schema provides the building blocks for defining entity types.
//
// An entity type is described by an [Entity]: its table, its columns with
// their declared scalar types, its primary key, and (optionally) the column
// used for optimistic locking. Entities are defined once at startup with the
// fluent builder and registered with the access layer's registry:
//
//	user := schema.New("User").
//	    Column("name", schema.TypeString).
//	    Column("age", schema.TypeInt).
//	    Entity()
//
// Table names default to the pluralized snake-case form of the entity name
// ("User" -> "users"); the primary key defaults to "id" and is added to the
// column list when not declared. Optimistic locking is disabled unless a
// lock column is named explicitly:
//
//	account := schema.New("Account").
//	    Column("balance", schema.TypeInt).
//	    Column("lock_version", schema.TypeInt).
//	    LockColumn("lock_version").
//	    Entity()
package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// A Type represents the declared scalar type of a column.
type Type int

// Column scalar types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeTime
	TypeBytes
	TypeUUID
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeTime:    "time",
	TypeBytes:   "bytes",
	TypeUUID:    "uuid",
}

// String returns the string representation of the type.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is a known column type.
func (t Type) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// A Column describes one attribute of an entity.
type Column struct {
	Name string
	Type Type
}

// An Entity is the immutable descriptor of an entity type. It is built once
// at definition time and read-only thereafter.
type Entity struct {
	// Name is the entity type name, e.g. "User".
	Name string

	// Table is the backing table name.
	Table string

	// Columns are the selectable columns, in declaration order.
	Columns []Column

	// PrimaryKey is the primary-key column name.
	PrimaryKey string

	// LockColumn is the optimistic-locking version column.
	// Empty means locking is disabled for this type.
	LockColumn string
}

// Column returns the column descriptor with the given name.
func (e *Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the entity declares the given column.
func (e *Entity) HasColumn(name string) bool {
	_, ok := e.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// Builder is a fluent builder for Entity descriptors.
type Builder struct {
	e *Entity
}

// New begins the definition of an entity type with the given name.
func New(name string) *Builder {
	return &Builder{e: &Entity{Name: name}}
}

// Table overrides the derived table name.
func (b *Builder) Table(name string) *Builder {
	b.e.Table = name
	return b
}

// Column declares a column with its scalar type.
func (b *Builder) Column(name string, t Type) *Builder {
	b.e.Columns = append(b.e.Columns, Column{Name: name, Type: t})
	return b
}

// PrimaryKey overrides the default "id" primary-key column.
func (b *Builder) PrimaryKey(name string) *Builder {
	b.e.PrimaryKey = name
	return b
}

// A Mixin contributes a reusable set of columns to an entity definition.
type Mixin interface {
	Columns() []Column
}

// Mixin appends the columns contributed by each mixin.
func (b *Builder) Mixin(ms ...Mixin) *Builder {
	for _, m := range ms {
		b.e.Columns = append(b.e.Columns, m.Columns()...)
	}
	return b
}

// LockColumn enables optimistic locking using the named version column.
// The column must also be declared with Column.
func (b *Builder) LockColumn(name string) *Builder {
	b.e.LockColumn = name
	return b
}

// Entity finalizes the definition and returns the descriptor with
// defaults applied.
func (b *Builder) Entity() *Entity {
	e := b.e
	if e.Table == "" {
		e.Table = TableName(e.Name)
	}
	if e.PrimaryKey == "" {
		e.PrimaryKey = "id"
	}
	if !e.HasColumn(e.PrimaryKey) {
		e.Columns = append([]Column{{Name: e.PrimaryKey, Type: TypeInt}}, e.Columns...)
	}
	return e
}

// TableName derives the table name for an entity name:
// the pluralized snake-case form ("OrderItem" -> "order_items").
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// ForeignKey derives the conventional foreign-key column referencing the
// named entity ("User" -> "user_id").
func ForeignKey(entity string) string {
	return inflect.Underscore(entity) + "_id"
}
