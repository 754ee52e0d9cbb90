package tools

import "encoding/json"

// ProjectCallArgs turns an input item's built-in-call fields into the
// JSON string the upstream function's "arguments" field expects. If the
// item already carries an "arguments" field holding valid JSON, it is
// passed through untouched; otherwise the remaining fields (after
// stripping type/id/call_id) are JSON-encoded as the payload.
// Grounded on original_source/openbridge/tools/registry.py::tool_call_args_from_item.
func ProjectCallArgs(fields map[string]any) string {
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "type", "id", "call_id":
			continue
		}
		data[k] = v
	}
	if raw, ok := data["arguments"].(string); ok {
		var probe any
		if json.Unmarshal([]byte(raw), &probe) == nil {
			return raw
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UnprojectCallArgs is the reverse of ProjectCallArgs: given the upstream
// function's joined JSON arguments, decode them back into the field map
// that belongs on the external *_call output item.
func UnprojectCallArgs(arguments string) map[string]any {
	if arguments == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(arguments), &out); err != nil {
		return map[string]any{"payload": arguments}
	}
	return out
}
