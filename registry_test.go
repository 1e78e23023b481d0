package takarik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takarik/takarik-data-sub002/schema"
	"github.com/takarik/takarik-data-sub002/schema/assoc"
)

// blogRegistry builds a registry with the entity graph used across the
// registry and builder tests.
func blogRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(
		schema.New("User").
			Column("name", schema.TypeString).
			Column("age", schema.TypeInt).
			Entity(),
		assoc.HasMany("posts", "Post").Dependent(assoc.DependentDestroy),
		assoc.HasOne("profile", "Profile").Dependent(assoc.DependentDeleteAll),
		assoc.HasMany("comments", "Comment").Through("posts"),
		assoc.ManyToMany("groups", "Group"),
	)
	r.MustRegister(
		schema.New("Post").
			Column("title", schema.TypeString).
			Column("user_id", schema.TypeInt).
			Entity(),
		assoc.BelongsTo("user", "User"),
		assoc.HasMany("comments", "Comment").As("commentable"),
		assoc.ManyToMany("tags", "Tag"),
	)
	r.MustRegister(
		schema.New("Profile").
			Column("bio", schema.TypeString).
			Column("user_id", schema.TypeInt).
			Entity(),
		assoc.BelongsTo("user", "User"),
	)
	r.MustRegister(
		schema.New("Comment").
			Column("body", schema.TypeString).
			Column("commentable_id", schema.TypeInt).
			Column("commentable_type", schema.TypeString).
			Entity(),
		assoc.BelongsToPolymorphic("commentable"),
	)
	r.MustRegister(schema.New("Tag").Column("name", schema.TypeString).Entity())
	r.MustRegister(schema.New("Group").Column("name", schema.TypeString).Entity())
	return r
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	e, err := r.Entity("User")
	require.NoError(t, err)
	assert.Equal(t, "users", e.Table)

	_, err = r.Entity("Widget")
	require.Error(t, err)

	// Duplicate registrations are rejected.
	err = r.Register(schema.New("User").Entity())
	require.Error(t, err)
}

func TestRegistryAssociationDefaults(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	// has-many foreign key defaults to the owner's conventional key.
	d, err := r.Association("User", "posts")
	require.NoError(t, err)
	assert.Equal(t, "user_id", d.ForeignKey)

	// many-to-many join table is derived deterministically.
	d, err = r.Association("User", "groups")
	require.NoError(t, err)
	assert.Equal(t, "groups_users", d.JoinTable)
	assert.Equal(t, "user_id", d.ForeignKey)
	assert.Equal(t, "group_id", d.AssociationForeignKey)

	_, err = r.Association("User", "bananas")
	assert.True(t, IsAssociationNotFound(err))
}

func TestRegistryAssociationsOrder(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	descs := r.Associations("User")
	require.Len(t, descs, 4)
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"posts", "profile", "comments", "groups"}, names)
}

func TestRegistryTargetAndPolymorphic(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	target, ok := r.AssociationTarget("posts")
	require.True(t, ok)
	assert.Equal(t, "Post", target)

	e, err := r.PolymorphicEntity("Post")
	require.NoError(t, err)
	assert.Equal(t, "posts", e.Table)

	_, err = r.PolymorphicEntity("Nope")
	require.Error(t, err)
}

func TestResolveJoinBelongsTo(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	joins, target, err := r.ResolveJoin("Post", "user")
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, InnerJoin, joins[0].Kind)
	assert.Equal(t, "users", joins[0].Table)
	assert.Equal(t, "posts.user_id = users.id", joins[0].On)
	assert.Equal(t, "User", target.Name)
}

func TestResolveJoinOptionalBelongsTo(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustRegister(schema.New("Category").Column("name", schema.TypeString).Entity())
	r.MustRegister(
		schema.New("Item").Column("category_id", schema.TypeInt).Entity(),
		assoc.BelongsTo("category", "Category").Optional(),
	)

	joins, _, err := r.ResolveJoin("Item", "category")
	require.NoError(t, err)
	assert.Equal(t, LeftJoin, joins[0].Kind)
}

func TestResolveJoinHasMany(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	joins, target, err := r.ResolveJoin("User", "posts")
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, LeftJoin, joins[0].Kind)
	assert.Equal(t, "users.id = posts.user_id", joins[0].On)
	assert.Equal(t, "Post", target.Name)
}

func TestResolveJoinHasOne(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	joins, _, err := r.ResolveJoin("User", "profile")
	require.NoError(t, err)
	assert.Equal(t, LeftJoin, joins[0].Kind)
	assert.Equal(t, "users.id = profiles.user_id", joins[0].On)
}

func TestResolveJoinThrough(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	// User -> posts -> comments. The second hop on Post is polymorphic,
	// so the through join is refused.
	_, _, err := r.ResolveJoin("User", "comments")
	assert.True(t, IsUnsupportedJoin(err))
}

func TestResolveJoinThroughTwoHops(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustRegister(
		schema.New("Author").Column("name", schema.TypeString).Entity(),
		assoc.HasMany("books", "Book"),
		assoc.HasMany("chapters", "Chapter").Through("books"),
	)
	r.MustRegister(
		schema.New("Book").Column("author_id", schema.TypeInt).Entity(),
		assoc.BelongsTo("author", "Author"),
		assoc.HasMany("chapters", "Chapter"),
	)
	r.MustRegister(
		schema.New("Chapter").Column("book_id", schema.TypeInt).Entity(),
		assoc.BelongsTo("book", "Book"),
	)

	joins, target, err := r.ResolveJoin("Author", "chapters")
	require.NoError(t, err)
	require.Len(t, joins, 2)
	assert.Equal(t, "authors.id = books.author_id", joins[0].On)
	assert.Equal(t, "books.id = chapters.book_id", joins[1].On)
	assert.Equal(t, LeftJoin, joins[0].Kind)
	assert.Equal(t, LeftJoin, joins[1].Kind)
	assert.Equal(t, "Chapter", target.Name)
}

func TestResolveJoinManyToMany(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	joins, target, err := r.ResolveJoin("Post", "tags")
	require.NoError(t, err)
	require.Len(t, joins, 2)
	assert.Equal(t, "posts_tags", joins[0].Table)
	assert.Equal(t, "posts.id = posts_tags.post_id", joins[0].On)
	assert.Equal(t, "posts_tags.tag_id = tags.id", joins[1].On)
	assert.Equal(t, "Tag", target.Name)
}

func TestResolveJoinPolymorphic(t *testing.T) {
	t.Parallel()
	r := blogRegistry(t)

	_, _, err := r.ResolveJoin("Comment", "commentable")
	assert.True(t, IsUnsupportedJoin(err))

	_, _, err = r.ResolveJoin("Post", "comments")
	assert.True(t, IsUnsupportedJoin(err))
}

func TestJoinTableName(t *testing.T) {
	t.Parallel()

	// Pluralize both entity names, lexicographic order.
	assert.Equal(t, "posts_tags", JoinTableName("Post", "Tag"))
	assert.Equal(t, "posts_tags", JoinTableName("Tag", "Post"))
	assert.Equal(t, "groups_users", JoinTableName("User", "Group"))
}
