package perception

import (
	"fmt"
	"sort"
	"strings"

	"github.com/applymytech/openElara-sub000/internal/logging"
)

// mergeAttachments prepends context-canvas files and attached file content
// to the last user turn. Both blocks are always present, with explicit
// placeholders when empty, so the prompt structure is stable across turns.
// The input slice is not mutated.
func mergeAttachments(turns []Turn, attached string, canvas map[string]string) []Turn {
	merged := make([]Turn, len(turns))
	copy(merged, turns)

	last := -1
	for i := len(merged) - 1; i >= 0; i-- {
		if merged[i].Role == RoleUser {
			last = i
			break
		}
	}

	// History may have been trimmed away entirely; an attachment still
	// needs a user message to ride on.
	if last == -1 {
		if attached == "" && len(canvas) == 0 {
			return merged
		}
		merged = append(merged, Turn{Role: RoleUser, Content: ""})
		last = len(merged) - 1
		logging.Get(logging.CategoryAPI).Infof("no recent user message found; created synthetic user message to carry attachment")
	}

	var b strings.Builder

	b.WriteString("--- START OF CONTEXT CANVAS ---\n")
	if len(canvas) > 0 {
		names := make([]string, 0, len(canvas))
		for name := range canvas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "\n{%s}\n%s\n", name, canvas[name])
		}
	} else {
		b.WriteString("[No files in context canvas this turn]\n")
	}
	b.WriteString("--- END OF CONTEXT CANVAS ---\n\n")

	b.WriteString("--- START OF ATTACHED FILE CONTENT ---\n")
	if attached != "" {
		b.WriteString(attached)
		b.WriteString("\n")
	} else {
		b.WriteString("[No file attached this turn]\n")
	}
	b.WriteString("--- END OF ATTACHED FILE CONTENT ---\n\n")

	merged[last] = Turn{
		Role:    RoleUser,
		Content: b.String() + merged[last].Content,
	}
	return merged
}
