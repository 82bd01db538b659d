package output

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentrun/core"
)

func notesSchema() *Schema {
	return &Schema{
		Name:        "Notes",
		Description: "Reading notes",
		Fields: []Field{
			{Name: "title", Type: TypeString, Description: "Title"},
			{Name: "score", Type: TypeInteger, Description: "Score from 1 to 10"},
			{Name: "tags", Type: TypeArray, Description: "Topic tags",
				Items: &Field{Name: "tag", Type: TypeString, Description: "One tag"}},
			{Name: "reviewer", Type: TypeObject, Description: "Who reviewed it", Optional: true,
				Fields: []Field{
					{Name: "name", Type: TypeString, Description: "Reviewer name"},
				}},
		},
	}
}

func TestSchema_JSONSchema(t *testing.T) {
	js := notesSchema().JSONSchema()

	assert.Equal(t, "object", js["type"])
	props := js["properties"].(map[string]any)
	assert.Contains(t, props, "title")
	assert.Contains(t, props, "tags")

	required := js["required"].([]string)
	assert.ElementsMatch(t, []string{"title", "score", "tags"}, required)

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	items := tags["items"].(map[string]any)
	assert.Equal(t, "string", items["type"])
}

func TestSchema_Instructions(t *testing.T) {
	text := notesSchema().Instructions()

	assert.Contains(t, text, "single JSON object")
	assert.Contains(t, text, `"title"`)
	assert.Contains(t, text, "Score from 1 to 10")
	assert.Contains(t, text, "optional")
}

func TestValidate_Success(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"Attention","score":9,"tags":["nlp","transformers"]}`)

	assert.NoError(t, err)
	assert.Equal(t, "Attention", obj["title"])
	assert.Equal(t, 9.0, obj["score"])
}

func TestValidate_ExtractsFromProse(t *testing.T) {
	raw := "Sure! Here are the notes:\n```json\n{\"title\":\"X\",\"score\":5,\"tags\":[]}\n```\nHope that helps."

	obj, err := notesSchema().Validate(raw)

	assert.NoError(t, err)
	assert.Equal(t, "X", obj["title"])
}

func TestValidate_MissingRequiredFieldNoPartial(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"only a title"}`)

	assert.Error(t, err)
	assert.Equal(t, core.KindSchemaViolation, core.KindOf(err))
	// Validation fails as a whole; nothing partial comes back.
	assert.Nil(t, obj)
}

func TestValidate_WrongType(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"X","score":"nine","tags":[]}`)

	assert.Error(t, err)
	assert.Equal(t, core.KindSchemaViolation, core.KindOf(err))
	assert.Nil(t, obj)
}

func TestValidate_NoJSONAtAll(t *testing.T) {
	_, err := notesSchema().Validate("I could not produce the notes, sorry.")

	assert.Error(t, err)
	assert.Equal(t, core.KindSchemaViolation, core.KindOf(err))
}

func TestValidate_ClosedSchemaDropsUnknownFields(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"X","score":1,"tags":[],"confidence":"high"}`)

	assert.NoError(t, err)
	_, present := obj["confidence"]
	assert.False(t, present)
}

func TestValidate_OpenSchemaKeepsUnknownFields(t *testing.T) {
	s := notesSchema()
	s.Open = true

	obj, err := s.Validate(`{"title":"X","score":1,"tags":[],"confidence":"high"}`)

	assert.NoError(t, err)
	assert.Equal(t, "high", obj["confidence"])
}

func TestValidate_OptionalFieldMayBeAbsent(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"X","score":3,"tags":["a"]}`)

	assert.NoError(t, err)
	_, present := obj["reviewer"]
	assert.False(t, present)
}

func TestValidate_NestedObject(t *testing.T) {
	obj, err := notesSchema().Validate(`{"title":"X","score":3,"tags":[],"reviewer":{"name":"Ada"}}`)

	assert.NoError(t, err)
	reviewer := obj["reviewer"].(map[string]any)
	assert.Equal(t, "Ada", reviewer["name"])
}

func TestValidate_NestedObjectViolation(t *testing.T) {
	_, err := notesSchema().Validate(`{"title":"X","score":3,"tags":[],"reviewer":{}}`)

	assert.Error(t, err)
	assert.Equal(t, core.KindSchemaViolation, core.KindOf(err))
}
