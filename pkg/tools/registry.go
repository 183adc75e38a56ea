// Package tools holds the static catalog of capabilities the assistant may
// invoke. The registry is built once at startup and shared read-only across
// sessions; invocation failures are absorbed at this boundary so a
// misbehaving tool can never terminate a session.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// GenericFailure is returned to the model whenever a tool invocation fails
// internally. The real error goes to the log, not the conversation.
const GenericFailure = "Error invoking tool"

// Handler executes a tool against its decoded JSON input.
type Handler func(ctx context.Context, input map[string]any) (string, error)

// Param describes one input parameter of a tool. Parameters not marked
// optional are required, in the order declared.
type Param struct {
	Name        string
	Type        string
	Description string
	Optional    bool
}

// Definition is the immutable description of one invocable tool.
type Definition struct {
	Name               string
	Description        string
	Params             []Param
	RequiresPermission bool
	Handler            Handler
}

// Schema is the provider-neutral JSON schema view of a tool.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]map[string]any
	Required    []string
}

// InputSchema derives the tool's JSON schema. Required lists exactly the
// parameters not marked optional, in declaration order.
func (d *Definition) InputSchema() Schema {
	properties := make(map[string]map[string]any, len(d.Params))
	var required []string
	for _, p := range d.Params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return Schema{
		Name:        d.Name,
		Description: d.Description,
		Properties:  properties,
		Required:    required,
	}
}

// Registry is the process-wide tool catalog.
type Registry struct {
	tools   map[string]*Definition
	order   []string
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
}

// NewRegistry validates and indexes the given definitions. Definitions are
// never mutated after construction.
func NewRegistry(logger zerolog.Logger, defs ...Definition) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]*Definition, len(defs)),
		schemas: make(map[string]*gojsonschema.Schema, len(defs)),
		logger:  logger.With().Str("component", "tools").Logger(),
	}

	for i := range defs {
		def := defs[i]
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("invalid tool definition: %w", err)
		}
		if _, exists := r.tools[def.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", def.Name)
		}

		schema, err := compileSchema(def)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
		}

		r.tools[def.Name] = &def
		r.schemas[def.Name] = schema
		r.order = append(r.order, def.Name)
	}

	return r, nil
}

// Lookup returns the named tool definition, or false when unknown.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// Schemas returns the schema of every registered tool, in registration order.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].InputSchema())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Invoke decodes and validates the raw input, then runs the tool's handler.
// Any handler error or panic is logged and converted to GenericFailure; the
// second return reports whether the invocation succeeded.
func (r *Registry) Invoke(ctx context.Context, def *Definition, rawInput json.RawMessage) (output string, ok bool) {
	logger := r.logger.With().Str("tool", def.Name).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Tool handler panicked")
			output, ok = GenericFailure, false
		}
	}()

	input := map[string]any{}
	if len(rawInput) > 0 {
		if err := json.Unmarshal(rawInput, &input); err != nil {
			logger.Error().Err(err).Msg("Tool input is not a JSON object")
			return GenericFailure, false
		}
	}

	if err := r.validateInput(def.Name, input); err != nil {
		logger.Error().Err(err).Msg("Tool input validation failed")
		return GenericFailure, false
	}

	result, err := def.Handler(ctx, input)
	if err != nil {
		logger.Error().Err(err).Msg("Error invoking tool")
		return GenericFailure, false
	}

	logger.Debug().Msg("Tool invocation completed")
	return result, true
}

func (r *Registry) validateInput(name string, input map[string]any) error {
	schema := r.schemas[name]
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			errs = append(errs, resultErr.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil for %s", def.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Params {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty in %s", def.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s.%s", param.Type, def.Name, param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s.%s", def.Name, param.Name)
		}
	}
	return nil
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	schema := def.InputSchema()
	schemaMap := map[string]any{
		"type":       "object",
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		schemaMap["required"] = schema.Required
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}
