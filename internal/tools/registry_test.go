package tools

import "testing"

func TestVirtualizeTools_BuiltinCollision(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.VirtualizeTools([]DeclaredTool{
		{Type: "function", Name: "apply_patch"},
		{Type: "apply_patch"},
	})
	if err == nil {
		t.Fatalf("expected collision error, got nil")
	}
}

func TestVirtualizeTools_ReservedPrefixRejected(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.VirtualizeTools([]DeclaredTool{
		{Type: "function", Name: "ob_custom"},
	})
	if err == nil {
		t.Fatalf("expected reserved-prefix error, got nil")
	}
}

func TestVirtualizeTools_DuplicateFunctionName(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.VirtualizeTools([]DeclaredTool{
		{Type: "function", Name: "lookup"},
		{Type: "function", Name: "lookup"},
	})
	if err == nil {
		t.Fatalf("expected duplicate-name error, got nil")
	}
}

func TestVirtualizeTools_BuiltinBijection(t *testing.T) {
	r := DefaultRegistry()
	m, err := r.VirtualizeTools([]DeclaredTool{{Type: "shell"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.ChatTools) != 1 || m.ChatTools[0].Function.Name != "shell" {
		t.Fatalf("expected one chat tool named shell, got %+v", m.ChatTools)
	}
	if m.FunctionNameMap["shell"] != "shell" || m.ExternalNameMap["shell"] != "shell" {
		t.Fatalf("expected bijection entries for shell, got %+v / %+v", m.FunctionNameMap, m.ExternalNameMap)
	}
}

func TestVirtualizeTools_UnknownExternalTypeGetsGenericSchema(t *testing.T) {
	r := DefaultRegistry()
	m, err := r.VirtualizeTools([]DeclaredTool{{Type: "mcp_widget"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.ChatTools) != 1 || m.ChatTools[0].Function.Name != ReservedPrefix+"mcp_widget" {
		t.Fatalf("expected reserved-prefixed generic tool, got %+v", m.ChatTools)
	}
}

func TestProjectCallArgs_RoundTrip(t *testing.T) {
	args := ProjectCallArgs(map[string]any{
		"type":     "shell_call",
		"call_id":  "call_1",
		"command":  []string{"ls"},
		"workdir":  "/tmp",
	})
	back := UnprojectCallArgs(args)
	if back["workdir"] != "/tmp" {
		t.Fatalf("expected workdir to round-trip, got %+v", back)
	}
}
