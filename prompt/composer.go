// Package prompt merges a fixed persona, a numbered instruction sequence and
// the caller's task input into the message material sent to the model.
// Composition is pure: no side effects, no failure modes beyond what the
// caller passes in.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentrun/core"
)

// ComposedPrompt is the result of composition: the system-level instruction
// text and the user turn that seeds the conversation.
type ComposedPrompt struct {
	Instructions string
	User         core.Content
}

// Compose builds the prompt for one run. Instruction order is preserved
// exactly as declared; the sequence is semantically meaningful ("step 1
// search, step 2 read, step 3 summarize"). Side-context values are
// interpolated by name into the user turn in deterministic (sorted) order.
func Compose(persona string, instructions []string, taskInput string, sideContext map[string]string) ComposedPrompt {
	var sys strings.Builder
	if persona != "" {
		sys.WriteString(strings.TrimSpace(persona))
	}
	if len(instructions) > 0 {
		if sys.Len() > 0 {
			sys.WriteString("\n\n")
		}
		sys.WriteString("Follow these steps in order:\n")
		for i, inst := range instructions {
			fmt.Fprintf(&sys, "%d. %s\n", i+1, strings.TrimSpace(inst))
		}
	}

	var user strings.Builder
	user.WriteString(taskInput)
	if len(sideContext) > 0 {
		keys := make([]string, 0, len(sideContext))
		for k := range sideContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		user.WriteString("\n\nAdditional context:\n")
		for _, k := range keys {
			fmt.Fprintf(&user, "- %s: %s\n", k, sideContext[k])
		}
	}

	return ComposedPrompt{
		Instructions: sys.String(),
		User:         core.NewTextContent("user", user.String()),
	}
}
