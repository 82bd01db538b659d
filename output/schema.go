// Package output implements typed output schemas and final answer
// validation. A Schema is a named set of typed fields; field descriptions are
// passed to the model as instructions, not just documentation, and materially
// affect output quality; they are part of the schema's contract.
package output

import (
	"fmt"
	"strings"
)

// FieldType enumerates the JSON types a schema field may declare.
type FieldType string

const (
	// TypeString declares a string field.
	TypeString FieldType = "string"
	// TypeInteger declares an integer field.
	TypeInteger FieldType = "integer"
	// TypeNumber declares a floating point field.
	TypeNumber FieldType = "number"
	// TypeBoolean declares a boolean field.
	TypeBoolean FieldType = "boolean"
	// TypeArray declares an array field; Items describes the element shape.
	TypeArray FieldType = "array"
	// TypeObject declares a nested object field; Fields describes its members.
	TypeObject FieldType = "object"
)

// Field declares one typed, described schema field. Fields are required by
// default; set Optional for fields the model may omit.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Optional    bool
	Items       *Field  // Element shape when Type == TypeArray
	Fields      []Field // Member shape when Type == TypeObject
}

// Schema is the typed contract a structured final answer must conform to.
// Schemas are closed by default: unexpected top-level fields in the model's
// answer are dropped, not treated as an error, to tolerate benign model
// verbosity. Set Open to preserve unknown fields instead.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
	Open        bool
}

// JSONSchema renders the schema as a JSON Schema object usable both for
// validation and for providers with a constrained decoding mode.
func (s *Schema) JSONSchema() map[string]any {
	return objectSchema(s.Fields, s.Description)
}

func objectSchema(fields []Field, description string) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		properties[f.Name] = fieldSchema(f)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if description != "" {
		schema["description"] = description
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func fieldSchema(f Field) map[string]any {
	var schema map[string]any
	switch f.Type {
	case TypeObject:
		schema = objectSchema(f.Fields, "")
	case TypeArray:
		schema = map[string]any{"type": "array"}
		if f.Items != nil {
			schema["items"] = fieldSchema(*f.Items)
		}
	default:
		schema = map[string]any{"type": string(f.Type)}
	}
	if f.Description != "" {
		schema["description"] = f.Description
	}
	return schema
}

// Instructions renders the schema as model-facing instructions. The field
// descriptions tell the model what belongs in each field.
func (s *Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Your final answer must be ONLY a single JSON object")
	if s.Name != "" {
		fmt.Fprintf(&b, " (%s)", s.Name)
	}
	b.WriteString(" with no additional commentary, matching this structure:\n")
	writeFields(&b, s.Fields, 0)
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, f := range fields {
		opt := ""
		if f.Optional {
			opt = ", optional"
		}
		fmt.Fprintf(b, "%s- %q (%s%s): %s\n", pad, f.Name, f.Type, opt, f.Description)
		switch {
		case f.Type == TypeObject:
			writeFields(b, f.Fields, indent+1)
		case f.Type == TypeArray && f.Items != nil && f.Items.Type == TypeObject:
			fmt.Fprintf(b, "%s  each element:\n", pad)
			writeFields(b, f.Items.Fields, indent+2)
		}
	}
}
