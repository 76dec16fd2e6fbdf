package trait

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// schemas holds one resolved JSON schema per kind, compiled at init.
var schemas = map[Kind]*jsonschema.Resolved{}

func init() {
	for kind, specs := range catalog {
		resolved, err := compileSchema(specs)
		if err != nil {
			// A catalog entry that cannot compile is a programming error.
			panic(fmt.Sprintf("trait: compiling schema for kind %q: %v", kind, err))
		}
		schemas[kind] = resolved
	}
}

// compileSchema builds the JSON schema for one field inventory.
// Float fields accept a number in [0, 1] or null; string fields accept
// a string or null. Fields outside the inventory are rejected.
func compileSchema(specs []FieldSpec) (*jsonschema.Resolved, error) {
	zero, one := 0.0, 1.0
	props := make(map[string]*jsonschema.Schema, len(specs))
	for _, spec := range specs {
		switch spec.Type {
		case FieldFloat:
			props[spec.Name] = &jsonschema.Schema{
				Types:       []string{"number", "null"},
				Minimum:     &zero,
				Maximum:     &one,
				Description: spec.Desc,
			}
		case FieldString:
			props[spec.Name] = &jsonschema.Schema{
				Types:       []string{"string", "null"},
				Description: spec.Desc,
			}
		default:
			return nil, fmt.Errorf("unsupported field type %d for %q", spec.Type, spec.Name)
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		// Not of the empty schema matches nothing: unknown fields fail.
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
	return schema.Resolve(nil)
}

// ValidateFields checks a field payload against the kind's compiled schema.
// Returns ErrUnknownKind for kinds outside the catalog and ErrInvalidFields
// (wrapping the schema violation) for payloads that do not conform.
func ValidateFields(k Kind, fields map[string]any) error {
	resolved, ok := schemas[k]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if fields == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidFields)
	}
	if err := resolved.Validate(fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}
	return nil
}
