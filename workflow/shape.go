package workflow

// Shape maps field names to type descriptions. A value is either a type name
// string ("string", "number", "boolean", "array", "object", "null") or a
// nested Shape for object fields.
type Shape = map[string]any

// ShapeFromSchema reduces a JSON-schema-style structured_output declaration
// to a Shape. Unknown or partial schemas degrade to "unknown" rather than
// failing, since declared outputs are advisory.
func ShapeFromSchema(schema map[string]any) Shape {
	if len(schema) == 0 {
		return Shape{}
	}

	typ, _ := schema["type"].(string)
	if typ == "object" {
		if props, ok := schema["properties"].(map[string]any); ok {
			shape := make(Shape, len(props))
			for key, raw := range props {
				prop, ok := raw.(map[string]any)
				if !ok {
					shape[key] = "unknown"
					continue
				}
				shape[key] = schemaType(prop)
			}
			return shape
		}
	}
	if typ == "array" {
		return Shape{"type": "array"}
	}
	if typ == "" {
		typ = "unknown"
	}
	return Shape{"type": typ}
}

func schemaType(schema map[string]any) any {
	typ, _ := schema["type"].(string)
	switch typ {
	case "object":
		if props, ok := schema["properties"].(map[string]any); ok {
			nested := make(Shape, len(props))
			for key, raw := range props {
				prop, ok := raw.(map[string]any)
				if !ok {
					nested[key] = "unknown"
					continue
				}
				nested[key] = schemaType(prop)
			}
			return nested
		}
		return "object"
	case "array":
		if items, ok := schema["items"].(map[string]any); ok {
			return Shape{"type": "array", "items": schemaType(items)}
		}
		return Shape{"type": "array"}
	case "":
		return "unknown"
	default:
		return typ
	}
}

// ShapeOf derives a Shape from concrete data, one level of keys deep for
// objects. Non-object values yield a {"type": name} shape.
func ShapeOf(data any) Shape {
	if m, ok := data.(map[string]any); ok {
		shape := make(Shape, len(m))
		for key, value := range m {
			shape[key] = TypeName(value)
		}
		return shape
	}
	return Shape{"type": TypeName(data)}
}

// TypeName returns the shape type name for a concrete value.
func TypeName(value any) string {
	switch value.(type) {
	case bool:
		return "boolean"
	case int, int32, int64, float32, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}
