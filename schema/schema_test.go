package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grafo/schema"
)

func seriesType() *schema.Type {
	return &schema.Type{
		Name: "Series",
		Fields: []*schema.Field{
			{Name: "title", Kind: schema.String},
		},
		Edges: []*schema.Edge{
			{Name: "episodes", Target: "Episode", Cardinality: schema.OrderedList, Inverse: "series"},
		},
	}
}

func episodeType() *schema.Type {
	return &schema.Type{
		Name: "Episode",
		Fields: []*schema.Field{
			{Name: "season", Kind: schema.Int, Optional: true},
		},
		Edges: []*schema.Edge{
			{Name: "series", Target: "Series", Dir: schema.In, Cardinality: schema.Single, Inverse: "episodes"},
		},
	}
}

func TestRegistryDefaults(t *testing.T) {
	t.Parallel()
	reg := schema.New()
	reg.MustRegister(
		&schema.Type{
			Name: "WatchEvent",
			Fields: []*schema.Field{
				{Name: "startedAt", Kind: schema.Time},
			},
		},
	)
	require.NoError(t, reg.Validate())

	typ, ok := reg.Lookup("WatchEvent")
	require.True(t, ok)
	assert.Equal(t, "watch_event", typ.Label)
	assert.Equal(t, "started_at", typ.Field("startedAt").StorageKey)

	byLabel, ok := reg.ByLabel("watch_event")
	require.True(t, ok)
	assert.Same(t, typ, byLabel)
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		typ  *schema.Type
	}{
		{
			name: "EmptyTypeName",
			typ:  &schema.Type{},
		},
		{
			name: "InvalidKind",
			typ: &schema.Type{
				Name:   "Bad",
				Fields: []*schema.Field{{Name: "x"}},
			},
		},
		{
			name: "DuplicateField",
			typ: &schema.Type{
				Name: "Bad",
				Fields: []*schema.Field{
					{Name: "x", Kind: schema.Int},
					{Name: "x", Kind: schema.String},
				},
			},
		},
		{
			name: "StorageKeyCollision",
			typ: &schema.Type{
				Name: "Bad",
				Fields: []*schema.Field{
					{Name: "startedAt", Kind: schema.Time},
					{Name: "started_at", Kind: schema.String},
				},
			},
		},
		{
			name: "EdgeCollidesWithField",
			typ: &schema.Type{
				Name:   "Bad",
				Fields: []*schema.Field{{Name: "x", Kind: schema.Int}},
				Edges:  []*schema.Edge{{Name: "x", Target: "Bad", Cardinality: schema.Single}},
			},
		},
		{
			name: "MissingCardinality",
			typ: &schema.Type{
				Name:  "Bad",
				Edges: []*schema.Edge{{Name: "others", Target: "Bad"}},
			},
		},
		{
			name: "DupOnNonList",
			typ: &schema.Type{
				Name:  "Bad",
				Edges: []*schema.Edge{{Name: "others", Target: "Bad", Cardinality: schema.UnorderedSet, Dup: true}},
			},
		},
		{
			name: "InDirectionList",
			typ: &schema.Type{
				Name:  "Bad",
				Edges: []*schema.Edge{{Name: "others", Target: "Bad", Dir: schema.In, Cardinality: schema.OrderedList, StorageKey: "others"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := schema.New()
			err := reg.Register(tt.typ)
			require.Error(t, err)
			assert.True(t, schema.IsError(err))
		})
	}

	t.Run("DuplicateType", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		require.NoError(t, reg.Register(seriesType()))
		err := reg.Register(seriesType())
		assert.True(t, schema.IsError(err))
	})
}

func TestRegistryValidate(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		reg.MustRegister(seriesType(), episodeType())
		require.NoError(t, reg.Validate())

		// The inverse side addresses the owning side's relationship type.
		ep, _ := reg.Lookup("Episode")
		assert.Equal(t, "episodes", ep.Edge("series").StorageKey)
	})

	t.Run("UnregisteredTarget", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		reg.MustRegister(seriesType())
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("InverseDoesNotPointBack", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		ep := episodeType()
		ep.Edges[0].Inverse = "seasons"
		s := seriesType()
		s.Edges[0].Name = "seasons"
		s.Edges[0].Inverse = "show"
		reg.MustRegister(s, ep)
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("BothSidesOut", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		ep := episodeType()
		ep.Edges[0].Dir = schema.Out
		reg.MustRegister(seriesType(), ep)
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("ManyToManyMustBeSets", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		reg.MustRegister(
			&schema.Type{
				Name:  "Person",
				Edges: []*schema.Edge{{Name: "watched", Target: "Series", Cardinality: schema.OrderedList, Inverse: "watchers", Dup: false}},
			},
			&schema.Type{
				Name:  "Series",
				Edges: []*schema.Edge{{Name: "watchers", Target: "Person", Dir: schema.In, Cardinality: schema.UnorderedSet, Inverse: "watched"}},
			},
		)
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("UnidirectionalInEdgeNeedsStorageKey", func(t *testing.T) {
		t.Parallel()
		reg := schema.New()
		reg.MustRegister(
			seriesType(), episodeType(),
			&schema.Type{
				Name:  "Bookmark",
				Edges: []*schema.Edge{{Name: "target", Target: "Episode", Dir: schema.In, Cardinality: schema.Single}},
			},
		)
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("EdgeStorageKeyCollision", func(t *testing.T) {
		t.Parallel()
		// Two distinct edges sharing one relationship type would read
		// each other's members.
		reg := schema.New()
		reg.MustRegister(
			seriesType(), episodeType(),
			&schema.Type{
				Name: "Channel",
				Edges: []*schema.Edge{
					{Name: "airing", Target: "Series", Cardinality: schema.UnorderedSet, StorageKey: "shows"},
					{Name: "archived", Target: "Series", Cardinality: schema.UnorderedSet, StorageKey: "shows"},
				},
			},
		)
		err := reg.Validate()
		assert.True(t, schema.IsError(err))
	})

	t.Run("SelfReferentialPairSharesKey", func(t *testing.T) {
		t.Parallel()
		// Both ends of a self-referential pair address the same stored
		// relationship; that is the one permitted key overlap.
		reg := schema.New()
		reg.MustRegister(&schema.Type{
			Name:   "Person",
			Fields: []*schema.Field{{Name: "name", Kind: schema.String}},
			Edges: []*schema.Edge{
				{Name: "children", Target: "Person", Cardinality: schema.OrderedList, Inverse: "parent"},
				{Name: "parent", Target: "Person", Dir: schema.In, Cardinality: schema.Single, Inverse: "children"},
			},
		})
		require.NoError(t, reg.Validate())
		p, _ := reg.Lookup("Person")
		assert.Equal(t, "children", p.Edge("parent").StorageKey)
	})
}

func TestNamingHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "watch_event", schema.DefaultLabel("WatchEvent"))
	assert.Equal(t, "started_at", schema.DefaultStorageKey("startedAt"))
	assert.Equal(t, "isEpisodesOf", schema.DefaultInverse("episodes"))
}

func TestKindAndCardinalityNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "string", schema.String.String())
	assert.Equal(t, "time", schema.Time.String())
	assert.False(t, schema.Invalid.Valid())
	assert.True(t, schema.Int.Valid())

	assert.Equal(t, "list", schema.OrderedList.String())
	assert.True(t, schema.OrderedList.ToMany())
	assert.False(t, schema.Single.ToMany())

	assert.Equal(t, "in", schema.In.String())
	assert.Equal(t, "cascade", schema.Cascade.String())
}
