package tools

// defaultBuiltins returns the catalog entries shipped out of the box.
// Schemas are grounded on original_source/openbridge/tools/builtins.py.
func defaultBuiltins() []Entry {
	return []Entry{
		{
			ExternalType: "apply_patch",
			Definition: ChatTool{
				Type: "function",
				Function: FunctionDef{
					Name:        "apply_patch",
					Description: "Apply a unified diff patch to the workspace.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"input": map[string]any{"type": "string"},
						},
						"required":             []string{"input"},
						"additionalProperties": false,
					},
				},
			},
		},
		{
			ExternalType: "shell",
			Definition: ChatTool{
				Type: "function",
				Function: FunctionDef{
					Name:        "shell",
					Description: "Run a shell command in the workspace.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"command": map[string]any{
								"type":  "array",
								"items": map[string]any{"type": "string"},
							},
							"workdir":           map[string]any{"type": "string"},
							"timeout_ms":        map[string]any{"type": "integer"},
						},
						"required":             []string{"command"},
						"additionalProperties": false,
					},
				},
			},
		},
		{
			ExternalType: "local_shell",
			Definition: ChatTool{
				Type: "function",
				Function: FunctionDef{
					Name:        "local_shell",
					Description: "Run a command on the local machine hosting the client.",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"command": map[string]any{
								"type":  "array",
								"items": map[string]any{"type": "string"},
							},
							"workdir": map[string]any{"type": "string"},
						},
						"required":             []string{"command"},
						"additionalProperties": false,
					},
				},
			},
		},
	}
}
