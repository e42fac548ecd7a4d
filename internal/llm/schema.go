package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
)

// DocumentSchema lists the top-level fields a document reply must carry.
// Everything else is optional and backfilled during normalization.
func DocumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"summary"},
	}
}

// SymptomSchema lists the top-level fields a symptom reply must carry.
func SymptomSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symptomSummary":     map[string]any{"type": "string", "minLength": 1, "pattern": `\S`},
			"recommendedActions": map[string]any{"type": "object"},
		},
		"required": []string{"symptomSummary", "recommendedActions"},
	}
}

var compiled = map[constants.Flow]*jsonschema.Schema{
	constants.FlowDocument: mustCompile("document.json", DocumentSchema()),
	constants.FlowSymptom:  mustCompile("symptom.json", SymptomSchema()),
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateRequired checks a decoded reply against the flow's required fields.
// Failures wrap common.ErrInvalidSchema.
func ValidateRequired(flow constants.Flow, v any) error {
	schema, ok := compiled[flow]
	if !ok {
		return fmt.Errorf("no schema for flow %q", flow)
	}
	if err := schema.Validate(v); err != nil {
		return common.KindError(common.ErrInvalidSchema, err)
	}
	return nil
}
