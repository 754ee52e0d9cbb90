package responses

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ParseRequest parses a raw Responses request body. It follows the
// teacher's to_ir/openai.go style of walking the JSON with gjson and
// copying each recognized field into Request; fields Request does not
// model are dropped.
func ParseRequest(raw []byte) (*Request, error) {
	root := gjson.ParseBytes(raw)

	req := &Request{
		Model:              root.Get("model").String(),
		Instructions:       root.Get("instructions").String(),
		Verbosity:          root.Get("verbosity").String(),
		Stream:             root.Get("stream").Bool(),
		PreviousResponseID: root.Get("previous_response_id").String(),
		ToolChoice:         root.Get("tool_choice"),
	}

	if m := root.Get("max_output_tokens"); m.Exists() {
		v := int(m.Int())
		req.MaxOutputTokens = &v
	}
	if t := root.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if t := root.Get("top_p"); t.Exists() {
		v := t.Float()
		req.TopP = &v
	}
	if t := root.Get("parallel_tool_calls"); t.Exists() {
		v := t.Bool()
		req.ParallelToolCalls = &v
	}
	if s := root.Get("store"); s.Exists() {
		v := s.Bool()
		req.Store = &v
	}
	if r := root.Get("reasoning"); r.IsObject() {
		var m map[string]any
		_ = json.Unmarshal([]byte(r.Raw), &m)
		req.Reasoning = m
	}
	if tf := root.Get("text.format"); tf.Exists() {
		req.Text = parseTextFormat(tf)
	}

	input := root.Get("input")
	switch {
	case input.Type == gjson.String:
		req.Input = []InputItem{{Type: "message", Role: "user", Content: input.String()}}
	case input.IsArray():
		for _, item := range input.Array() {
			req.Input = append(req.Input, parseInputItem(item))
		}
	}

	if toolsArr := root.Get("tools"); toolsArr.IsArray() {
		for _, t := range toolsArr.Array() {
			req.Tools = append(req.Tools, parseToolDecl(t))
		}
	}

	return req, nil
}

func parseTextFormat(tf gjson.Result) *TextFormat {
	kind := tf.Get("type").String()
	out := &TextFormat{Kind: kind}
	switch kind {
	case "json_schema":
		js := tf.Get("json_schema")
		out.Name = js.Get("name").String()
		out.Strict = js.Get("strict").Bool()
		var schema map[string]any
		_ = json.Unmarshal([]byte(js.Get("schema").Raw), &schema)
		out.JSONSchema = schema
	case "json_object":
	default:
		out.Kind = ""
	}
	return out
}

func parseToolDecl(t gjson.Result) ToolDecl {
	typ := t.Get("type").String()
	// Nested shape: {"type":"function","function":{"name","description","parameters"}}
	if fn := t.Get("function"); fn.Exists() {
		var params map[string]any
		_ = json.Unmarshal([]byte(fn.Get("parameters").Raw), &params)
		return ToolDecl{
			Type:        typ,
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
			Parameters:  params,
		}
	}
	// Flat shape: {"type","name","parameters"}.
	var params map[string]any
	_ = json.Unmarshal([]byte(t.Get("parameters").Raw), &params)
	return ToolDecl{
		Type:        typ,
		Name:        t.Get("name").String(),
		Description: t.Get("description").String(),
		Parameters:  params,
	}
}

func parseInputItem(item gjson.Result) InputItem {
	typ := item.Get("type").String()

	raw := map[string]any{}
	_ = json.Unmarshal([]byte(item.Raw), &raw)
	delete(raw, "type")
	delete(raw, "id")
	delete(raw, "call_id")

	switch {
	case typ == "message" || typ == "":
		return InputItem{
			Type:    "message",
			Role:    orDefault(item.Get("role").String(), "user"),
			Content: extractContentText(item.Get("content")),
		}
	case typ == "function_call":
		return InputItem{
			Type:      typ,
			CallID:    item.Get("call_id").String(),
			Name:      item.Get("name").String(),
			Arguments: item.Get("arguments").String(),
		}
	case typ == "function_call_output":
		return InputItem{
			Type:         typ,
			CallID:       item.Get("call_id").String(),
			Output:       stringifyOutput(item.Get("output")),
			OutputIsJSON: isJSONOutput(item.Get("output")),
		}
	case typ == "reasoning":
		var details []map[string]any
		for _, d := range item.Get("details").Array() {
			var m map[string]any
			_ = json.Unmarshal([]byte(d.Raw), &m)
			details = append(details, m)
		}
		return InputItem{
			Type: typ,
			Reasoning: &ReasoningBlock{
				Summary:   item.Get("summary").String(),
				Details:   details,
				Encrypted: item.Get("encrypted").String(),
			},
		}
	default:
		// Virtualized built-in call / call_output, or an unknown type that
		// the translator will drop.
		return InputItem{
			Type:         typ,
			CallID:       item.Get("call_id").String(),
			Output:       stringifyOutput(item.Get("output")),
			OutputIsJSON: isJSONOutput(item.Get("output")),
			RawFields:    raw,
		}
	}
}

func extractContentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		text := ""
		for _, part := range content.Array() {
			switch part.Get("type").String() {
			case "input_text", "output_text", "text":
				text += part.Get("text").String()
			}
		}
		return text
	}
	return ""
}

func stringifyOutput(output gjson.Result) string {
	if output.Type == gjson.String {
		return output.String()
	}
	return output.Raw
}

func isJSONOutput(output gjson.Result) bool {
	return output.Exists() && output.Type != gjson.String
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
