// Package mixin provides common column sets for entity definitions.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Users are encouraged to create their own mixins tailored to their needs.
//
// Usage:
//
//	schema.New("User").
//	    Mixin(mixin.Timestamps{}).
//	    Column("name", schema.TypeString).
//	    Entity()
package mixin

import (
	"github.com/takarik/takarik-data-sub002/schema"
)

// CreateTime adds a created_at timestamp column.
type CreateTime struct{}

// Columns of the create time mixin.
func (CreateTime) Columns() []schema.Column {
	return []schema.Column{{Name: "created_at", Type: schema.TypeTime}}
}

// UpdateTime adds an updated_at timestamp column.
type UpdateTime struct{}

// Columns of the update time mixin.
func (UpdateTime) Columns() []schema.Column {
	return []schema.Column{{Name: "updated_at", Type: schema.TypeTime}}
}

// Timestamps combines CreateTime and UpdateTime.
type Timestamps struct{}

// Columns of the timestamps mixin.
func (Timestamps) Columns() []schema.Column {
	return append(CreateTime{}.Columns(), UpdateTime{}.Columns()...)
}

// SoftDelete adds a deleted_at column for soft deletion.
type SoftDelete struct{}

// Columns of the soft delete mixin.
func (SoftDelete) Columns() []schema.Column {
	return []schema.Column{{Name: "deleted_at", Type: schema.TypeTime}}
}

// TenantID adds a tenant_id column for multi-tenancy.
type TenantID struct{}

// Columns of the tenant mixin.
func (TenantID) Columns() []schema.Column {
	return []schema.Column{{Name: "tenant_id", Type: schema.TypeString}}
}
