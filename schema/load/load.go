package load

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/grafo/schema"
)

// Document is the serialized form of a set of type declarations.
// YAML is the canonical encoding; JSON documents parse through the
// same path since YAML is a superset.
type Document struct {
	Types []*TypeDecl `yaml:"types" json:"types"`
}

// TypeDecl mirrors schema.Type.
type TypeDecl struct {
	Name   string       `yaml:"name" json:"name"`
	Label  string       `yaml:"label,omitempty" json:"label,omitempty"`
	Fields []*FieldDecl `yaml:"fields,omitempty" json:"fields,omitempty"`
	Edges  []*EdgeDecl  `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// FieldDecl mirrors schema.Field.
type FieldDecl struct {
	Name       string `yaml:"name" json:"name"`
	Kind       string `yaml:"kind" json:"kind"`
	StorageKey string `yaml:"storage_key,omitempty" json:"storage_key,omitempty"`
	Optional   bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// EdgeDecl mirrors schema.Edge.
type EdgeDecl struct {
	Name        string `yaml:"name" json:"name"`
	Target      string `yaml:"target" json:"target"`
	Cardinality string `yaml:"cardinality" json:"cardinality"`
	Direction   string `yaml:"direction,omitempty" json:"direction,omitempty"`
	Inverse     string `yaml:"inverse,omitempty" json:"inverse,omitempty"`
	StorageKey  string `yaml:"storage_key,omitempty" json:"storage_key,omitempty"`
	Dup         bool   `yaml:"dup,omitempty" json:"dup,omitempty"`
	OnDelete    string `yaml:"on_delete,omitempty" json:"on_delete,omitempty"`
}

// Read parses a declaration document and returns a validated registry.
func Read(r io.Reader) (*schema.Registry, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("load: parse declarations: %w", err)
	}
	return doc.Build()
}

// File parses the declaration file at path and returns a validated
// registry.
func File(path string) (*schema.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: open declarations: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Build converts the document into a validated schema.Registry.
func (d *Document) Build() (*schema.Registry, error) {
	reg := schema.New()
	for _, td := range d.Types {
		t := &schema.Type{Name: td.Name, Label: td.Label}
		for _, fd := range td.Fields {
			kind, err := parseKind(fd.Kind)
			if err != nil {
				return nil, fmt.Errorf("load: type %s, field %s: %w", td.Name, fd.Name, err)
			}
			t.Fields = append(t.Fields, &schema.Field{
				Name:       fd.Name,
				Kind:       kind,
				StorageKey: fd.StorageKey,
				Optional:   fd.Optional,
			})
		}
		for _, ed := range td.Edges {
			card, err := parseCardinality(ed.Cardinality)
			if err != nil {
				return nil, fmt.Errorf("load: type %s, edge %s: %w", td.Name, ed.Name, err)
			}
			dir, err := parseDirection(ed.Direction)
			if err != nil {
				return nil, fmt.Errorf("load: type %s, edge %s: %w", td.Name, ed.Name, err)
			}
			onDelete, err := parseOnDelete(ed.OnDelete)
			if err != nil {
				return nil, fmt.Errorf("load: type %s, edge %s: %w", td.Name, ed.Name, err)
			}
			t.Edges = append(t.Edges, &schema.Edge{
				Name:        ed.Name,
				Target:      ed.Target,
				Cardinality: card,
				Dir:         dir,
				Inverse:     ed.Inverse,
				StorageKey:  ed.StorageKey,
				Dup:         ed.Dup,
				OnDelete:    onDelete,
			})
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func parseKind(s string) (schema.Kind, error) {
	switch strings.ToLower(s) {
	case "string":
		return schema.String, nil
	case "int", "integer":
		return schema.Int, nil
	case "float", "number":
		return schema.Float, nil
	case "bool", "boolean":
		return schema.Bool, nil
	case "time", "date", "datetime":
		return schema.Time, nil
	default:
		return schema.Invalid, fmt.Errorf("unknown kind %q", s)
	}
}

func parseCardinality(s string) (schema.Cardinality, error) {
	switch strings.ToLower(s) {
	case "single", "ref", "one":
		return schema.Single, nil
	case "list":
		return schema.OrderedList, nil
	case "set":
		return schema.UnorderedSet, nil
	case "":
		// Leave the explicit-declaration check to the registry.
		return schema.Unspecified, nil
	default:
		return schema.Unspecified, fmt.Errorf("unknown cardinality %q", s)
	}
}

func parseDirection(s string) (schema.Direction, error) {
	switch strings.ToLower(s) {
	case "", "out":
		return schema.Out, nil
	case "in":
		return schema.In, nil
	default:
		return schema.Out, fmt.Errorf("unknown direction %q", s)
	}
}

func parseOnDelete(s string) (schema.OnDelete, error) {
	switch strings.ToLower(s) {
	case "", "restrict":
		return schema.Restrict, nil
	case "cascade":
		return schema.Cascade, nil
	default:
		return schema.Restrict, fmt.Errorf("unknown on_delete policy %q", s)
	}
}
