package schema

// applyStrictMode sets additionalProperties:false on every object schema in
// the document that does not declare additionalProperties itself. The walk
// recurses through the composition keywords, definitions, and tuple items so
// nested objects cannot smuggle extra fields past validation.
func applyStrictMode(doc any) {
	node, ok := doc.(map[string]any)
	if !ok {
		if arr, ok := doc.([]any); ok {
			for _, el := range arr {
				applyStrictMode(el)
			}
		}
		return
	}

	if isObjectSchema(node) {
		if _, declared := node["additionalProperties"]; !declared {
			node["additionalProperties"] = false
		}
	}

	// Child schemas keyed by property name.
	for _, key := range []string{"properties", "patternProperties", "$defs", "definitions"} {
		if m, ok := node[key].(map[string]any); ok {
			for _, sub := range m {
				applyStrictMode(sub)
			}
		}
	}

	// Composition keywords and tuple items hold schema lists.
	for _, key := range []string{"allOf", "anyOf", "oneOf", "prefixItems"} {
		if arr, ok := node[key].([]any); ok {
			for _, sub := range arr {
				applyStrictMode(sub)
			}
		}
	}

	// Single-schema keywords; items may also be a tuple array (draft-07).
	for _, key := range []string{"items", "additionalItems", "not", "if", "then", "else", "contains", "propertyNames"} {
		switch sub := node[key].(type) {
		case map[string]any:
			applyStrictMode(sub)
		case []any:
			for _, el := range sub {
				applyStrictMode(el)
			}
		}
	}

	// additionalProperties may itself be a schema.
	if sub, ok := node["additionalProperties"].(map[string]any); ok {
		applyStrictMode(sub)
	}
}

// isObjectSchema reports whether a schema node describes an object: either
// explicitly typed or carrying a properties map.
func isObjectSchema(node map[string]any) bool {
	if t, ok := node["type"].(string); ok && t == "object" {
		return true
	}
	if types, ok := node["type"].([]any); ok {
		for _, t := range types {
			if s, ok := t.(string); ok && s == "object" {
				return true
			}
		}
	}
	_, hasProps := node["properties"]
	return hasProps
}

// simpleWrapperField detects the `{ <field>: string }` wrapper shape: an
// object schema with exactly one property of type string. Shorthand form
// `{"field": "string"}` is accepted too.
func simpleWrapperField(doc any) (string, bool) {
	node, ok := doc.(map[string]any)
	if !ok {
		return "", false
	}

	// Full JSON-Schema form.
	if props, ok := node["properties"].(map[string]any); ok {
		if len(props) != 1 {
			return "", false
		}
		for name, sub := range props {
			if m, ok := sub.(map[string]any); ok {
				if t, _ := m["type"].(string); t == "string" {
					return name, true
				}
			}
		}
		return "", false
	}

	// Shorthand: a single key mapped to the literal "string".
	if len(node) == 1 {
		for name, v := range node {
			if s, ok := v.(string); ok && s == "string" {
				return name, true
			}
		}
	}
	return "", false
}
