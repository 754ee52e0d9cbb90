// Package tools implements the ToolRegistry: the static, process-wide
// catalog of virtualized built-in tools, and the per-turn ToolMap bijection
// that projects every tool kind onto a single upstream function-tool
// namespace.
package tools

import (
	"fmt"
	"sort"

	"github.com/nghyane/openbridge/internal/apierrors"
)

// ReservedPrefix is refused in any user-declared function tool name.
const ReservedPrefix = "ob_"

// FunctionDef is the upstream function-tool shape:
// {"type":"function","function":{"name","description","parameters"}}.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatTool is one upstream tool declaration.
type ChatTool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// Entry is one built-in tool's catalog entry: its canonical (unprefixed)
// name and the JSON schema advertised to the upstream model.
type Entry struct {
	ExternalType string
	Definition   ChatTool
}

// Registry holds the static catalog of virtualized built-in tools.
// It is immutable after construction and safe for concurrent read access
// by every in-flight request (spec §5, "ToolRegistry is immutable after
// process start").
type Registry struct {
	builtins map[string]Entry
}

// DefaultRegistry returns the registry seeded with the three built-in
// tools the bridge understands natively: apply_patch, shell, local_shell.
// Grounded on original_source/openbridge/tools/builtins.py.
func DefaultRegistry() *Registry {
	r := &Registry{builtins: make(map[string]Entry)}
	for _, e := range defaultBuiltins() {
		r.builtins[e.ExternalType] = e
	}
	return r
}

// Lookup returns the catalog entry for an external tool type, or false if
// it is not a known built-in.
func (r *Registry) Lookup(externalType string) (Entry, bool) {
	e, ok := r.builtins[externalType]
	return e, ok
}

// All returns every registered built-in entry, sorted by external type for
// deterministic iteration.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.builtins))
	for _, e := range r.builtins {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalType < out[j].ExternalType })
	return out
}

// FunctionNameForExternal returns the virtualized upstream function name
// for an external tool type: the built-in's own canonical name if known,
// otherwise the reserved-prefixed fallback name.
func (r *Registry) FunctionNameForExternal(externalType string) string {
	if e, ok := r.builtins[externalType]; ok {
		return e.Definition.Function.Name
	}
	return ReservedPrefix + externalType
}

// ToolDefinitionForExternal returns the upstream tool declaration for an
// external tool type, falling back to a generic single-string-payload
// schema for unrecognized types.
func (r *Registry) ToolDefinitionForExternal(externalType string) ChatTool {
	if e, ok := r.builtins[externalType]; ok {
		return e.Definition
	}
	return ChatTool{
		Type: "function",
		Function: FunctionDef{
			Name:        r.FunctionNameForExternal(externalType),
			Description: fmt.Sprintf("Return a JSON payload for %s.", externalType),
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"payload": map[string]any{"type": "string"}},
				"required":             []string{"payload"},
				"additionalProperties": false,
			},
		},
	}
}

// Map is the per-turn bijection between external tool type (or
// user-declared function name) and virtualized upstream function name.
// It is produced fresh by VirtualizeTools for every request and discarded
// once the response is emitted (spec §9, "bijection instead of global
// registry monkey-patching").
type Map struct {
	// ChatTools is the upstream tool declaration list, in declaration order.
	ChatTools []ChatTool
	// FunctionNameMap maps a virtualized upstream function name back to
	// the external built-in type it represents (absent for plain
	// user-declared function tools).
	FunctionNameMap map[string]string
	// ExternalNameMap is the inverse of FunctionNameMap.
	ExternalNameMap map[string]string
}

// DeclaredTool is a tool as declared in a Responses request, already
// normalized to a flat {type, name, description, parameters} shape by the
// caller (see responses.ParseRequest, which flattens nested declarations).
type DeclaredTool struct {
	Type        string
	Name        string
	Description string
	Parameters  map[string]any
}

// VirtualizeTools builds the per-turn ToolMap from a request's declared
// tools. Function-type declarations pass through under their own name
// (after a reserved-prefix check); every other declared type is resolved
// through the registry and recorded in the bijection. Fails with
// invalid_request on a reserved-prefix violation or a name collision,
// matching original_source/openbridge/tools/registry.py::virtualize_tools.
func (r *Registry) VirtualizeTools(decls []DeclaredTool) (Map, error) {
	result := Map{
		FunctionNameMap: map[string]string{},
		ExternalNameMap: map[string]string{},
	}
	if len(decls) == 0 {
		return result, nil
	}

	seen := map[string]bool{}
	for _, d := range decls {
		if d.Type == "function" {
			if d.Name == "" {
				continue
			}
			if len(d.Name) >= len(ReservedPrefix) && d.Name[:len(ReservedPrefix)] == ReservedPrefix {
				return Map{}, apierrors.InvalidRequest(fmt.Sprintf(
					"function tool name must not start with reserved prefix %q: %q", ReservedPrefix, d.Name))
			}
			if seen[d.Name] {
				return Map{}, apierrors.InvalidRequest(fmt.Sprintf("duplicate tool name: %q", d.Name))
			}
			seen[d.Name] = true
			result.ChatTools = append(result.ChatTools, ChatTool{
				Type: "function",
				Function: FunctionDef{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Parameters,
				},
			})
			continue
		}

		def := r.ToolDefinitionForExternal(d.Type)
		name := def.Function.Name
		if seen[name] {
			return Map{}, apierrors.InvalidRequest(fmt.Sprintf(
				"tool name collision for external type %q: %q", d.Type, name))
		}
		seen[name] = true
		result.ChatTools = append(result.ChatTools, def)
		result.FunctionNameMap[name] = d.Type
		result.ExternalNameMap[d.Type] = name
	}

	return result, nil
}
