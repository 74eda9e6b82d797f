package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator is a ToolLifecycleListener that rejects a tool
// invocation before Execute runs if its params don't satisfy the
// tool's declared JSON Schema. Tools with a nil Schema are not checked.
//
// Compiled schemas are cached per tool name since jsonschema.Compile is
// not cheap and a tool's schema never changes across invocations.
type SchemaValidator struct {
	BaseListener

	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds an empty validator; schemas compile lazily
// on first use of each tool.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{compiled: make(map[string]*jsonschema.Schema)}
}

func (v *SchemaValidator) OnInvoke(_ context.Context, tctx ToolInvocationContext) error {
	schema := tctx.Tool.Schema()
	if schema == nil {
		return nil
	}
	name := tctx.Tool.Name()
	sch, ok := v.compiled[name]
	if !ok {
		compiled, err := compileSchema(schema)
		if err != nil {
			return fmt.Errorf("tool %q: invalid schema: %w", name, err)
		}
		v.compiled[name] = compiled
		sch = compiled
	}

	// jsonschema validates against Go values produced by the standard
	// decoder's "unmarshal into any" shape, not arbitrary map[string]any,
	// so round-trip the params through JSON first.
	raw, err := json.Marshal(tctx.Params)
	if err != nil {
		return fmt.Errorf("tool %q: params not serializable: %w", name, err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("tool %q: params not serializable: %w", name, err)
	}

	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("tool %q: params failed schema validation: %w", name, err)
	}
	return nil
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	const resourceID = "inline://tool-schema.json"
	if err := c.AddResource(resourceID, doc); err != nil {
		return nil, err
	}
	return c.Compile(resourceID)
}
