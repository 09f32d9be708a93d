package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// BuildBatchJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing the model's required response shape. Used locally to
// validate payloads before decoding; missing test_results keys are allowed
// (they are backfilled with TBD, not rejected).
func BuildBatchJSONSchema() map[string]any {
	resultProps := make(map[string]any, len(constants.TestParameters))
	for _, p := range constants.TestParameters {
		resultProps[p] = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"batch_number":     map[string]any{"type": "string"},
			"manufacture_date": map[string]any{"type": "string"},
			"manufacturer":     map[string]any{"type": "string"},
			"test_results": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
				"properties":           resultProps,
			},
		},
		"required": []string{"batch_number", "test_results"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
