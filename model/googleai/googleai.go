// Package googleai provides a model wrapper for the Google Gemini API.
package googleai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int32
	APIKey      string
}

// Model wraps the Gemini generate-content API behind the generic model.Model
// interface. The underlying client is created lazily because genai requires a
// context for construction; the init is guarded so a single Model is safe for
// concurrent Generate calls.
type Model struct {
	opts Options

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// NewModel creates a new Gemini model. The API key is read from the
// GEMINI_API_KEY environment variable when not set explicitly.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	m := NewModel(optFns...)
	m.client = client
	return m
}

// Generate implements non-streaming generation. The full response is emitted
// as a single final event.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := m.ensureClient(ctx)
		if err != nil {
			errCh <- core.WrapError(core.KindUnavailable, err, "create gemini client")
			return
		}

		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(m.opts.Temperature),
			MaxOutputTokens: m.opts.MaxTokens,
		}

		if req.Instructions != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: req.Instructions}},
			}
		}

		if len(req.Tools) > 0 {
			config.Tools = []*genai.Tool{
				{FunctionDeclarations: buildDeclarations(req.Tools)},
			}
		}

		if req.Schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = convertSchema(req.Schema)
		}

		result, err := client.Models.GenerateContent(ctx, m.opts.Model, buildContents(req.Contents), config)
		if err != nil {
			errCh <- classify(err)
			return
		}
		if result == nil || len(result.Candidates) == 0 {
			errCh <- core.NewError(core.KindMalformed, "empty response from gemini")
			return
		}

		var parts []core.Part
		if text := result.Text(); text != "" {
			parts = append(parts, core.TextPart{Text: text})
		}
		for _, fc := range result.FunctionCalls() {
			args := ""
			if fc.Args != nil {
				if raw, err := json.Marshal(fc.Args); err == nil {
					args = string(raw)
				}
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        fc.ID,
				Name:      fc.Name,
				Arguments: args,
			}})
		}

		finishReason := "stop"
		if fr := result.Candidates[0].FinishReason; fr != "" {
			finishReason = string(fr)
		}

		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason,
		}
	}()

	return out, errCh
}

// ensureClient builds the genai client on first use. The result, success or
// failure, is shared by all subsequent calls.
func (m *Model) ensureClient(ctx context.Context) (*genai.Client, error) {
	m.initOnce.Do(func() {
		if m.client != nil {
			return
		}
		m.client, m.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  m.opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return m.client, m.initErr
}

// classify maps SDK failures into the core taxonomy by HTTP status.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return model.ClassifyStatus(apiErr.Code, err)
	}
	return core.WrapError(core.KindUnavailable, err, "gemini api error")
}

// buildContents converts normalized contents to Gemini's format. Gemini uses
// the role "model" for assistant turns; tool results travel as
// FunctionResponse parts inside a user turn.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		var parts []*genai.Part

		switch c.Role {
		case "assistant":
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						parts = append(parts, &genai.Part{Text: part.Text})
					}
				case core.FunctionCallPart:
					args := map[string]any{}
					if part.FunctionCall.Arguments != "" {
						_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
					}
					parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: "model", Parts: parts})
			}
		case "tool":
			for _, fr := range c.FunctionResponses() {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:   fr.ID,
					Name: fr.Name,
					Response: map[string]any{
						"content":  responseText(fr),
						"is_error": fr.Error != "",
					},
				}})
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: "user", Parts: parts})
			}
		default:
			if text := c.Text(); text != "" {
				out = append(out, &genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: text}},
				})
			}
		}
	}

	return out
}

func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fr.Error
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

// buildDeclarations converts generic tool definitions to Gemini function declarations.
func buildDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		}
	}
	return declarations
}

// convertSchema recursively converts a JSON schema map to Gemini schema format.
func convertSchema(raw map[string]any) *genai.Schema {
	if raw == nil {
		return nil
	}

	schema := &genai.Schema{}
	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}

	typ, _ := raw["type"].(string)
	switch typ {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if items, ok := raw["items"].(map[string]any); ok {
			schema.Items = convertSchema(items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if props, ok := raw["properties"].(map[string]any); ok {
			properties := make(map[string]*genai.Schema, len(props))
			for name, child := range props {
				if childMap, ok := child.(map[string]any); ok {
					properties[name] = convertSchema(childMap)
				}
			}
			schema.Properties = properties
		}
		schema.Required = requiredStrings(raw["required"])
	default:
		schema.Type = genai.TypeString
	}

	if enum, ok := raw["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	} else if enum, ok := raw["enum"].([]string); ok {
		schema.Enum = enum
	}

	return schema
}

func requiredStrings(required any) []string {
	switch v := required.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "googleai",
		SupportsTools: true,
	}
}
