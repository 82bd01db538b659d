// Package config loads declarative agent definitions from YAML. A document
// describes one or more agents (persona, instructions, model, tools, output
// schema, retry policy) plus an optional fallback chain ordering, and is
// resolved against a tool catalogue at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/output"
	"github.com/hupe1980/agentrun/tool"
)

// Document is the root of an agent definition file.
type Document struct {
	Agents []AgentSpec `yaml:"agents"`
	// Chain lists agent names in fallback order, first preferred.
	Chain []string `yaml:"chain,omitempty"`
}

// AgentSpec declares one agent.
type AgentSpec struct {
	Name          string      `yaml:"name"`
	Persona       string      `yaml:"persona,omitempty"`
	Instructions  []string    `yaml:"instructions,omitempty"`
	Model         ModelSpec   `yaml:"model"`
	Tools         []string    `yaml:"tools,omitempty"`
	Output        *SchemaSpec `yaml:"output,omitempty"`
	Retry         *RetrySpec  `yaml:"retry,omitempty"`
	MaxToolRounds int         `yaml:"max_tool_rounds,omitempty"`
	Streaming     bool        `yaml:"streaming,omitempty"`
}

// ModelSpec names the provider and model id an agent uses.
type ModelSpec struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name,omitempty"`
}

// RetrySpec declares the retry policy for an agent's model attempts.
type RetrySpec struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	Multiplier  float64  `yaml:"multiplier"`
}

// Duration wraps time.Duration so YAML values like "3s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// SchemaSpec declares a structured output schema.
type SchemaSpec struct {
	Name        string      `yaml:"name,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Open        bool        `yaml:"open,omitempty"`
	Fields      []FieldSpec `yaml:"fields"`
}

// FieldSpec declares one schema field.
type FieldSpec struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	Description string      `yaml:"description,omitempty"`
	Optional    bool        `yaml:"optional,omitempty"`
	Items       *FieldSpec  `yaml:"items,omitempty"`
	Fields      []FieldSpec `yaml:"fields,omitempty"`
}

var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"googleai":  true,
	"scripted":  true,
}

var knownFieldTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Load reads and validates an agent definition file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates an agent definition document.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if len(d.Agents) == 0 {
		return fmt.Errorf("config declares no agents")
	}

	seen := make(map[string]bool, len(d.Agents))
	for i := range d.Agents {
		a := &d.Agents[i]
		if a.Name == "" {
			return fmt.Errorf("agent %d has no name", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true

		if !knownProviders[a.Model.Provider] {
			return fmt.Errorf("agent %q: unknown model provider %q", a.Name, a.Model.Provider)
		}
		if a.Output != nil {
			if err := validateFields(a.Name, a.Output.Fields); err != nil {
				return err
			}
		}
		if a.Retry != nil && a.Retry.MaxAttempts < 1 {
			return fmt.Errorf("agent %q: retry max_attempts must be at least 1", a.Name)
		}
	}

	for _, name := range d.Chain {
		if !seen[name] {
			return fmt.Errorf("chain references unknown agent %q", name)
		}
	}

	return nil
}

func validateFields(agentName string, fields []FieldSpec) error {
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("agent %q: schema field with no name", agentName)
		}
		if !knownFieldTypes[f.Type] {
			return fmt.Errorf("agent %q: field %q has unknown type %q", agentName, f.Name, f.Type)
		}
		if f.Type == "object" {
			if err := validateFields(agentName, f.Fields); err != nil {
				return err
			}
		}
		if f.Type == "array" && f.Items != nil {
			if err := validateFields(agentName, []FieldSpec{*f.Items}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Agent returns the named agent spec.
func (d *Document) Agent(name string) (*AgentSpec, bool) {
	for i := range d.Agents {
		if d.Agents[i].Name == name {
			return &d.Agents[i], true
		}
	}
	return nil, false
}

// AgentConfig materializes an agent spec into a runnable agent.Config,
// resolving tool names against the given catalogue. A tool name with no
// catalogue entry is a configuration error.
func (s *AgentSpec) AgentConfig(catalogue *tool.Registry) (agent.Config, error) {
	cfg := agent.Config{
		Name:          s.Name,
		Persona:       s.Persona,
		Instructions:  s.Instructions,
		MaxToolRounds: s.MaxToolRounds,
		Streaming:     s.Streaming,
	}

	if len(s.Tools) > 0 {
		if catalogue == nil {
			return agent.Config{}, fmt.Errorf("agent %q requires tools but no catalogue given", s.Name)
		}
		resolved := make([]tool.Tool, 0, len(s.Tools))
		for _, name := range s.Tools {
			t, ok := catalogue.Lookup(name)
			if !ok {
				return agent.Config{}, fmt.Errorf("agent %q: tool %q not in catalogue", s.Name, name)
			}
			resolved = append(resolved, t)
		}
		registry, err := tool.NewRegistry(resolved)
		if err != nil {
			return agent.Config{}, fmt.Errorf("agent %q: %w", s.Name, err)
		}
		cfg.Tools = registry
	}

	if s.Output != nil {
		cfg.Schema = s.Output.Schema()
	}

	if s.Retry != nil {
		cfg.Retry = agent.RetryConfig{
			MaxAttempts: s.Retry.MaxAttempts,
			BaseDelay:   time.Duration(s.Retry.BaseDelay),
			Multiplier:  s.Retry.Multiplier,
		}
	} else {
		cfg.Retry = agent.DefaultRetryConfig()
	}

	return cfg, nil
}

// Schema converts the declared fields into an output.Schema.
func (s *SchemaSpec) Schema() *output.Schema {
	return &output.Schema{
		Name:        s.Name,
		Description: s.Description,
		Open:        s.Open,
		Fields:      convertFields(s.Fields),
	}
}

func convertFields(specs []FieldSpec) []output.Field {
	fields := make([]output.Field, len(specs))
	for i, fs := range specs {
		fields[i] = output.Field{
			Name:        fs.Name,
			Type:        output.FieldType(fs.Type),
			Description: fs.Description,
			Optional:    fs.Optional,
			Fields:      convertFields(fs.Fields),
		}
		if fs.Items != nil {
			items := convertFields([]FieldSpec{*fs.Items})
			fields[i].Items = &items[0]
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
