package output

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/agentrun/core"
)

// Validate parses raw model output into an object conforming to the schema.
// Every required field must be present with a value of the declared type or
// validation fails as a whole; no partial objects are ever returned. For a
// closed schema (the default) unknown top-level fields are dropped from the
// result.
//
// Failures carry kind SchemaViolation.
func (s *Schema) Validate(raw string) (map[string]any, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, core.NewError(core.KindSchemaViolation, "final answer contains no JSON object")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(doc), &obj); err != nil {
		return nil, core.WrapError(core.KindSchemaViolation, err, "final answer is not a JSON object")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.JSONSchema()),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		return nil, core.WrapError(core.KindSchemaViolation, err, "schema validation failed")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, core.NewError(core.KindSchemaViolation, strings.Join(msgs, "; "))
	}

	if !s.Open {
		declared := make(map[string]struct{}, len(s.Fields))
		for _, f := range s.Fields {
			declared[f.Name] = struct{}{}
		}
		for k := range obj {
			if _, ok := declared[k]; !ok {
				delete(obj, k)
			}
		}
	}

	return obj, nil
}

// extractJSON isolates the outermost JSON object in raw. Models frequently
// wrap structured answers in markdown fences or lead-in prose; everything
// outside the first balanced top-level object is ignored.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(raw, '}')
	if end <= start {
		return ""
	}
	return raw[start : end+1]
}
