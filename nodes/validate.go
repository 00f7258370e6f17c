package nodes

import (
	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
)

// checkStructuredOutput applies a light structural check over a declared
// output schema. The shape is advisory, so this only rejects declarations
// that could never be reduced to a shape.
func checkStructuredOutput(nodeType string, structuredOutput map[string]any) error {
	if len(structuredOutput) == 0 {
		return nil
	}
	typ, hasType := structuredOutput["type"]
	if hasType {
		if _, ok := typ.(string); !ok {
			return errors.NodeConfig(nodeType, "structured_output type must be a string")
		}
	}
	if props, ok := structuredOutput["properties"]; ok {
		if _, isMap := props.(map[string]any); !isMap {
			return errors.NodeConfig(nodeType, "structured_output properties must be an object")
		}
	}
	return nil
}

// checkExpression wraps a syntax failure into the unified error type, keeping
// the metadata field path for the UI.
func checkExpression(expression, fieldPath string) error {
	if err := expr.CheckAt(expression, fieldPath); err != nil {
		return errors.ExpressionSyntax(expression, fieldPath, err)
	}
	return nil
}

// checkTemplate is checkExpression for {{ ... }} templates.
func checkTemplate(template, fieldPath string) error {
	if err := expr.CheckTemplate(template, fieldPath); err != nil {
		return errors.ExpressionSyntax(template, fieldPath, err)
	}
	return nil
}
