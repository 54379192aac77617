package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/upg/internal/store"
)

// GenerateMermaid produces a Mermaid graph TD diagram from a graph store.
// Functions are grouped by their owning module; call edges become arrows
// and unsafe functions are drawn with the unsafe class.
func GenerateMermaid(ctx context.Context, st store.Store) (string, error) {
	fns, err := st.QueryFunctions(ctx, store.FunctionQuery{})
	if err != nil {
		return "", fmt.Errorf("query functions: %w", err)
	}

	calls, err := st.GetAllCalls(ctx)
	if err != nil {
		return "", fmt.Errorf("get calls: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(name string) string {
		if id, ok := nodeIDs[name]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[name] = id
		return id
	}

	groups := make(map[string][]store.FunctionNode) // module → functions
	for _, fn := range fns {
		mod := owner(fn.Name)
		groups[mod] = append(groups[mod], fn)
	}
	mods := make([]string, 0, len(groups))
	for mod := range groups {
		mods = append(mods, mod)
	}
	sort.Strings(mods)

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("  classDef unsafe fill:#fdd,stroke:#c00\n")

	var unsafe []string
	for _, mod := range mods {
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(mod+"_module"), escape(mod)))
		for _, fn := range groups[mod] {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(fn.Name), label(fn.Name)))
			if !fn.Safe {
				unsafe = append(unsafe, getID(fn.Name))
			}
		}
		sb.WriteString("  end\n")
	}

	sort.Slice(calls, func(i, j int) bool {
		if calls[i].Caller != calls[j].Caller {
			return calls[i].Caller < calls[j].Caller
		}
		return calls[i].Callee < calls[j].Callee
	})
	for _, e := range calls {
		srcID := getID(e.Caller)
		tgtID := getID(e.Callee)
		if len(e.Ranks) > 0 {
			sb.WriteString(fmt.Sprintf("  %s -->|%s| %s\n", srcID, ranks(e.Ranks), tgtID))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", srcID, tgtID))
	}

	if len(unsafe) > 0 {
		sb.WriteString(fmt.Sprintf("  class %s unsafe\n", strings.Join(unsafe, ",")))
	}

	return sb.String(), nil
}

// owner returns the path of the module or type owning a function:
// "a::b::f" → "a::b". Trait impl paths keep their "<T as Tr>" segment.
func owner(name string) string {
	if i := strings.LastIndex(name, "::"); i > 0 {
		return name[:i]
	}
	return name
}

// label returns the last path segment, quoted for Mermaid.
func label(name string) string {
	last := name
	if i := strings.LastIndex(name, "::"); i >= 0 {
		last = name[i+2:]
	}
	return escape(last)
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;")

func escape(s string) string { return mermaidEscaper.Replace(s) }

// ranks renders privilege ranks as "Type: Kind" pairs sorted by type.
func ranks(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = label(k) + ": " + m[k]
	}
	return strings.Join(parts, ", ")
}
