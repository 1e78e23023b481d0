// Package takarik is a relational-data access layer: a chainable
// query-construction engine combined with an association-aware join resolver
// and a record persistence lifecycle.
//
// Entity types are described with the schema and schema/assoc packages and
// registered once at startup:
//
//	registry := takarik.NewRegistry()
//	registry.MustRegister(
//	    schema.New("User").Column("name", schema.TypeString).Entity(),
//	    assoc.HasMany("posts", "Post").Dependent(assoc.DependentDestroy),
//	)
//	registry.MustRegister(
//	    schema.New("Post").
//	        Column("title", schema.TypeString).
//	        Column("user_id", schema.TypeInt).
//	        Entity(),
//	    assoc.BelongsTo("user", "User"),
//	)
//
// A Store binds the registry to a dialect.Driver and is the entry point for
// queries and records:
//
//	store := takarik.NewStore(drv, registry)
//	users, err := store.Query("User").
//	    Where(takarik.Eq{"name": "Alice"}).
//	    Order("id", "ASC").
//	    All(ctx)
//
// Records move through a New -> Persisted -> Deleted lifecycle with ordered
// callback phases, validation, transactional execution, and optional
// optimistic locking:
//
//	post, _ := store.New("Post", takarik.Eq{"title": "hello"})
//	ok, err := post.Save(ctx)
//
// Query builders and records are not safe for concurrent use; the
// registries are populated at startup and read-only afterward.
package takarik
