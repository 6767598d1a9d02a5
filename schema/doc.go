// Package schema provides the building blocks for declaring how
// application types map onto the property graph.
//
// A declaration is static, per-type metadata: which attributes become
// node properties (with a scalar [Kind]), and which become
// relationships (with an explicit [Cardinality], a [Direction] and an
// optional inverse). Declarations are collected in a [Registry]:
//
//	reg := schema.New()
//	reg.MustRegister(
//		&schema.Type{
//			Name: "Series",
//			Fields: []*schema.Field{
//				{Name: "title", Kind: schema.String},
//			},
//			Edges: []*schema.Edge{
//				{Name: "episodes", Target: "Episode",
//					Cardinality: schema.OrderedList, Inverse: "series"},
//			},
//		},
//		&schema.Type{
//			Name: "Episode",
//			Fields: []*schema.Field{
//				{Name: "season", Kind: schema.Int},
//			},
//			Edges: []*schema.Edge{
//				{Name: "series", Target: "Series", Dir: schema.In,
//					Cardinality: schema.Single, Inverse: "episodes"},
//			},
//		},
//	)
//
// # Validation
//
// All checking happens once, at startup: Register performs the
// per-type checks (attribute collisions, explicit cardinality,
// valid kinds) and [Registry.Validate] links the edges across types
// (targets registered, inverses mirrored, exactly one owning side).
// Any violation is a schema *[Error]. Runtime mapping operations read
// the prebuilt lookup tables and never re-validate.
//
// # Cardinality is explicit
//
// Whether a to-many relationship is an ordered list or an unordered
// set is a semantic choice the declaration must state; there is no
// inferred default. Many-to-many relationships must be sets on both
// sides — an ordered list is only meaningful opposite a single
// reference, where the owning side's ordinal is well defined.
//
// # Declarations from files
//
// The [github.com/syssam/grafo/schema/load] subpackage reads the same
// declarations from YAML or JSON documents and can watch a declaration
// file for changes during development.
package schema
