package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentcore/agentcore/pkg/types"
)

// Factory builds one tool's Definition against the ambient execution
// context (spec.md §4.2: "a factory context -> ToolDefinition").
type Factory func(execCtx *types.ToolExecutionContext) Definition

// Registry is the bound, per-task tool catalog: every Definition has
// already been wrapped with budget/telemetry (spec.md §4.2, §3
// "Ownership: Tool registry instances are per-task").
type Registry struct {
	names []string
	call  map[string]func(input map[string]any, meta CallMetadata) (map[string]any, error)
	defs  map[string]Definition
}

// ExternalToolDescriptor is the shape of a tool advertised by an
// ExternalToolSource (SPEC_FULL.md §B, the mark3labs/mcp-go seam).
type ExternalToolDescriptor struct {
	Name        string
	Description string
	Schema      []byte
}

// ExternalToolSource lists tools from an external (MCP) provider. A real
// implementation wraps an mcp-go client; tests use a slice-backed fake.
type ExternalToolSource interface {
	ListTools(ctx context.Context) ([]ExternalToolDescriptor, error)
}

// ErrBuiltinExternalConflict is a fatal construction error: a name
// collision between the builtin and external tool sets (spec.md §4.2
// "Conflict policy").
type ErrBuiltinExternalConflict struct {
	Names []string
}

func (e *ErrBuiltinExternalConflict) Error() string {
	return fmt.Sprintf("tool registry: builtin/external name conflict: %v", e.Names)
}

// BuiltinCatalog returns every builtin tool Factory, keyed by stable name
// (spec.md §4.2 catalog). Installations omit entries they don't want by
// filtering the returned map before calling Build.
func BuiltinCatalog() map[string]Factory {
	catalog := map[string]Factory{
		"ls":      lsFactory,
		"read":    readFactory,
		"tree":    treeFactory,
		"ripgrep": ripgrepFactory,
		"write":   writeFactory,
		"cp":      cpFactory,
		"mv":      mvFactory,
		"git":     gitFactory,
		"bash":    bashFactory,
		"webfetch": webfetchFactory,

		"background": backgroundFactory,

		"todo_list":       todoListFactory,
		"todo_add":        todoAddFactory,
		"todo_update":     todoUpdateFactory,
		"todo_complete":   todoCompleteFactory,
		"todo_reopen":     todoReopenFactory,
		"todo_remove":     todoRemoveFactory,
		"todo_clear_done": todoClearDoneFactory,

		"memory_list":   memoryListFactory,
		"memory_note":   memoryNoteFactory,
		"memory_forget": memoryForgetFactory,
	}
	return catalog
}

// Build constructs a bound Registry from a set of builtin factories (a
// filtered subset of BuiltinCatalog, per installation) plus an optional
// external tool source. Builtins always win a name collision against
// externals that merely ADVERTISE a schema without code behind it is
// nonsensical, so any overlap is a fatal construction error instead
// (spec.md §4.2 "Conflict policy": "any name collision... is a fatal
// construction error. Builtins always win in the merged map after
// conflict detection").
func Build(ctx context.Context, builtins map[string]Factory, execCtx *types.ToolExecutionContext, external ExternalToolSource) (*Registry, error) {
	r := &Registry{
		call: map[string]func(map[string]any, CallMetadata) (map[string]any, error){},
		defs: map[string]Definition{},
	}

	for name, factory := range builtins {
		def := factory(execCtx)
		def.Name = name
		r.defs[name] = def
		r.call[name] = Wrap(def, execCtx)
		r.names = append(r.names, name)
	}

	if external != nil {
		descriptors, err := external.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool registry: list external tools: %w", err)
		}
		var conflicts []string
		for _, d := range descriptors {
			if _, ok := r.defs[d.Name]; ok {
				conflicts = append(conflicts, d.Name)
			}
		}
		if len(conflicts) > 0 {
			return nil, &ErrBuiltinExternalConflict{Names: conflicts}
		}
		for _, d := range descriptors {
			def := Definition{Name: d.Name, Description: d.Description, Schema: d.Schema}
			r.defs[d.Name] = def
			// External tools are not wrapped with the builtin uniform
			// wrapper's budget/envelope logic here: an MCP client's own
			// transport owns the call; the registry only needs the
			// conflict-free catalog entry to exist.
			r.names = append(r.names, d.Name)
		}
	}

	sort.Strings(r.names)
	return r, nil
}

// Names returns every registered tool name in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Definition returns the catalog entry for name, if registered.
func (r *Registry) Definition(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Call dispatches to the wrapped execute function for name.
func (r *Registry) Call(name string, input map[string]any, meta CallMetadata) (map[string]any, error) {
	fn, ok := r.call[name]
	if !ok {
		return nil, fmt.Errorf("tool registry: unknown tool %q", name)
	}
	return fn(input, meta)
}
