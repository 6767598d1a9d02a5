package load_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grafo/schema"
	"github.com/syssam/grafo/schema/load"
)

const mediaYAML = `
types:
  - name: Series
    fields:
      - name: title
        kind: string
      - name: rating
        kind: float
        optional: true
    edges:
      - name: episodes
        target: Episode
        cardinality: list
        inverse: series
        on_delete: cascade
  - name: Episode
    fields:
      - name: season
        kind: int
        optional: true
      - name: airedAt
        kind: time
        optional: true
    edges:
      - name: series
        target: Series
        cardinality: single
        direction: in
        inverse: episodes
`

func TestRead(t *testing.T) {
	t.Parallel()
	reg, err := load.Read(strings.NewReader(mediaYAML))
	require.NoError(t, err)

	series, ok := reg.Lookup("Series")
	require.True(t, ok)
	assert.Equal(t, "series", series.Label)
	assert.Equal(t, schema.Float, series.Field("rating").Kind)
	assert.True(t, series.Field("rating").Optional)

	episodes := series.Edge("episodes")
	require.NotNil(t, episodes)
	assert.Equal(t, schema.OrderedList, episodes.Cardinality)
	assert.Equal(t, schema.Cascade, episodes.OnDelete)

	ep, ok := reg.Lookup("Episode")
	require.True(t, ok)
	assert.Equal(t, "aired_at", ep.Field("airedAt").StorageKey)
	assert.Equal(t, schema.In, ep.Edge("series").Dir)
	assert.Equal(t, "episodes", ep.Edge("series").StorageKey)
}

func TestReadJSON(t *testing.T) {
	t.Parallel()
	// JSON is a YAML subset; the same reader handles both encodings.
	doc := `{"types": [{"name": "Tag", "fields": [{"name": "name", "kind": "string"}]}]}`
	reg, err := load.Read(strings.NewReader(doc))
	require.NoError(t, err)
	_, ok := reg.Lookup("Tag")
	assert.True(t, ok)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "Malformed",
			doc:  "types: [unclosed",
		},
		{
			name: "UnknownKind",
			doc: `
types:
  - name: Bad
    fields:
      - name: x
        kind: decimal
`,
		},
		{
			name: "UnknownCardinality",
			doc: `
types:
  - name: Bad
    edges:
      - name: others
        target: Bad
        cardinality: bag
`,
		},
		{
			name: "MissingCardinality",
			doc: `
types:
  - name: Bad
    edges:
      - name: others
        target: Bad
`,
		},
		{
			name: "UnknownDirection",
			doc: `
types:
  - name: Bad
    edges:
      - name: others
        target: Bad
        cardinality: set
        direction: sideways
`,
		},
		{
			name: "UnknownOnDelete",
			doc: `
types:
  - name: Bad
    edges:
      - name: others
        target: Bad
        cardinality: set
        on_delete: explode
`,
		},
		{
			name: "DanglingTarget",
			doc: `
types:
  - name: Bad
    edges:
      - name: others
        target: Missing
        cardinality: set
        storage_key: others
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := load.Read(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mediaYAML), 0o644))

	reg, err := load.File(path)
	require.NoError(t, err)
	_, ok := reg.Lookup("Series")
	assert.True(t, ok)

	_, err = load.File(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mediaYAML), 0o644))

	reloads := make(chan *schema.Registry, 4)
	w, err := load.Watch(path, func(reg *schema.Registry, err error) {
		if err == nil {
			reloads <- reg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	// Unrelated files in the watched directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("types: []"), 0o644))

	require.NoError(t, os.WriteFile(path, []byte(mediaYAML+`
  - name: Tag
    fields:
      - name: name
        kind: string
`), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case reg := <-reloads:
			// Saves may fire more than one event; wait for the one that
			// carries the new type.
			if _, ok := reg.Lookup("Tag"); ok {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
