package completion

import (
	"sort"
	"strings"

	"github.com/davidbz/liftplan/internal/schema"
)

// Keys under which JSON Schema nests sub-schemas.
var (
	schemaMapKeys   = []string{"properties", "$defs", "definitions", "patternProperties"}
	schemaListKeys  = []string{"anyOf", "oneOf", "allOf", "prefixItems"}
	schemaValueKeys = []string{"items", "additionalProperties", "not", "contains"}
)

// prepareSchema returns the document sent to model: a self-contained object
// schema, with every property required for strict-class models.
func (c *Client) prepareSchema(desc schema.Descriptor, model string) map[string]any {
	doc := unwrapRoot(desc.JSONSchema())
	if c.isStrictModel(model) {
		requireAllProperties(doc)
	}
	return doc
}

func (c *Client) isStrictModel(model string) bool {
	for _, prefix := range c.strictPrefixes {
		if prefix != "" && strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// unwrapRoot replaces a "$ref" root with the definition it points at. The
// definitions are kept so nested references still resolve.
func unwrapRoot(doc map[string]any) map[string]any {
	delete(doc, "$schema")
	delete(doc, "$id")

	ref, ok := doc["$ref"].(string)
	if !ok {
		return doc
	}

	defsKey, name, ok := splitLocalRef(ref)
	if !ok {
		return doc
	}

	defs, ok := doc[defsKey].(map[string]any)
	if !ok {
		return doc
	}

	target, ok := defs[name].(map[string]any)
	if !ok {
		return doc
	}

	// The root must not share nested maps with its definition, or strict
	// rewriting reaches the same properties twice.
	root, _ := cloneSchema(target).(map[string]any)
	root[defsKey] = defs

	return root
}

func cloneSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t)+1)
		for k, sub := range t {
			out[k] = cloneSchema(sub)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = cloneSchema(sub)
		}
		return out
	default:
		return v
	}
}

// splitLocalRef splits "#/$defs/Name" into ("$defs", "Name").
func splitLocalRef(ref string) (string, string, bool) {
	parts := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	if !strings.HasPrefix(ref, "#/") || len(parts) != 2 {
		return "", "", false
	}
	if parts[0] != "$defs" && parts[0] != "definitions" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// requireAllProperties lists every property of every object as required and
// makes the previously optional ones nullable.
func requireAllProperties(node map[string]any) {
	if props, ok := node["properties"].(map[string]any); ok {
		required := make(map[string]bool)
		if list, listOK := node["required"].([]any); listOK {
			for _, v := range list {
				if s, sOK := v.(string); sOK {
					required[s] = true
				}
			}
		}

		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		all := make([]any, 0, len(keys))
		for _, k := range keys {
			if !required[k] {
				props[k] = nullable(props[k])
			}
			all = append(all, k)
		}
		node["required"] = all
	}

	for _, key := range schemaMapKeys {
		if m, ok := node[key].(map[string]any); ok {
			for _, v := range m {
				if sub, subOK := v.(map[string]any); subOK {
					requireAllProperties(sub)
				}
			}
		}
	}

	for _, key := range schemaListKeys {
		if list, ok := node[key].([]any); ok {
			for _, v := range list {
				if sub, subOK := v.(map[string]any); subOK {
					requireAllProperties(sub)
				}
			}
		}
	}

	for _, key := range schemaValueKeys {
		if sub, ok := node[key].(map[string]any); ok {
			requireAllProperties(sub)
		}
	}
}

// nullable widens a property schema to also accept null.
func nullable(prop any) any {
	m, ok := prop.(map[string]any)
	if !ok {
		return prop
	}

	if enum, enumOK := m["enum"].([]any); enumOK && !containsValue(enum, nil) {
		m["enum"] = append(enum, nil)
	}

	switch t := m["type"].(type) {
	case string:
		if t != "null" {
			m["type"] = []any{t, "null"}
		}
		return m
	case []any:
		if !containsValue(t, "null") {
			m["type"] = append(t, "null")
		}
		return m
	}

	return map[string]any{
		"anyOf": []any{m, map[string]any{"type": "null"}},
	}
}

func containsValue(list []any, want any) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
