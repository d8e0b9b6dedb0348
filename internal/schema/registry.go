package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// typeSpec is the decoded per-type section of the schema document.
type typeSpec struct {
	Statuses      []string `yaml:"statuses"`
	DefaultStatus string   `yaml:"default_status"`
	Required      []string `yaml:"required"`
}

// document is the decoded schema document.
type document struct {
	Types map[string]typeSpec `yaml:"types"`
}

// Registry is the read-only view of the entity type schema.
type Registry struct {
	types map[string]typeSpec
	names []string // sorted type names
}

// Load reads, validates, and decodes the schema document at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	reg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
		}
		return nil, err
	}
	return reg, nil
}

// Parse validates and decodes a schema document from memory.
//
// Validation runs in two stages: structural unification with the embedded
// CUE definition, then Go-side semantic checks (non-empty type set, status
// uniqueness, default membership).
func Parse(data []byte) (*Registry, error) {
	if err := checkStructure(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
	}
	if len(doc.Types) == 0 {
		return nil, &LoadError{Code: ErrCodeSemantics, Message: "schema declares no entity types"}
	}

	for name, spec := range doc.Types {
		seen := make(map[string]bool, len(spec.Statuses))
		for _, s := range spec.Statuses {
			if s == "" {
				return nil, &LoadError{
					Code:    ErrCodeSemantics,
					Message: fmt.Sprintf("type %q declares an empty status", name),
				}
			}
			if seen[s] {
				return nil, &LoadError{
					Code:    ErrCodeSemantics,
					Message: fmt.Sprintf("type %q declares duplicate status %q", name, s),
				}
			}
			seen[s] = true
		}
		if spec.DefaultStatus != "" && !seen[spec.DefaultStatus] {
			return nil, &LoadError{
				Code:    ErrCodeSemantics,
				Message: fmt.Sprintf("type %q default_status %q is not a declared status", name, spec.DefaultStatus),
			}
		}
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{types: doc.Types, names: names}, nil
}

// checkStructure unifies the YAML document with the embedded CUE contract.
// CUE reports both syntax errors and shape mismatches (wrong field types,
// empty status lists, unknown structure) with positions.
func checkStructure(data []byte) error {
	file, err := cueyaml.Extract("schema.yaml", data)
	if err != nil {
		return &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
	}

	ctx := cuecontext.New()
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
	}

	def := ctx.CompileString(schemaCUE).LookupPath(cue.MakePath(cue.Def("#Schema")))
	if err := def.Err(); err != nil {
		// Embedded contract is part of the binary; failure here is a bug.
		return &LoadError{Code: ErrCodeStructure, Message: fmt.Sprintf("embedded schema contract: %v", err)}
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return &LoadError{Code: ErrCodeStructure, Message: err.Error()}
	}
	return nil
}

// Types returns all declared type names in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether a type is declared.
func (r *Registry) Has(typ string) bool {
	_, ok := r.types[typ]
	return ok
}

// RequiredFields returns the data fields the type requires.
func (r *Registry) RequiredFields(typ string) []string {
	spec, ok := r.types[typ]
	if !ok {
		return nil
	}
	out := make([]string, len(spec.Required))
	copy(out, spec.Required)
	return out
}

// ValidStatuses returns the type's statuses in declared order.
func (r *Registry) ValidStatuses(typ string) []string {
	spec, ok := r.types[typ]
	if !ok {
		return nil
	}
	out := make([]string, len(spec.Statuses))
	copy(out, spec.Statuses)
	return out
}

// DefaultStatus returns the type's default status: the declared
// default_status, or the first status when none is declared.
func (r *Registry) DefaultStatus(typ string) string {
	spec, ok := r.types[typ]
	if !ok {
		return ""
	}
	if spec.DefaultStatus != "" {
		return spec.DefaultStatus
	}
	return spec.Statuses[0]
}

// AllStatuses returns the sorted union of every type's statuses.
// Consumed by the store's CHECK-constraint DDL generation.
func (r *Registry) AllStatuses() []string {
	set := map[string]bool{}
	for _, spec := range r.types {
		for _, s := range spec.Statuses {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
