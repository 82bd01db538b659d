package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose_PersonaAndNumberedInstructions(t *testing.T) {
	p := Compose(
		"You are a careful analyst.",
		[]string{"Search for the claim.", "Read the sources.", "Summarize."},
		"Is the claim true?",
		nil,
	)

	assert.True(t, strings.HasPrefix(p.Instructions, "You are a careful analyst."))
	assert.Contains(t, p.Instructions, "1. Search for the claim.")
	assert.Contains(t, p.Instructions, "2. Read the sources.")
	assert.Contains(t, p.Instructions, "3. Summarize.")
	// Declared order is preserved.
	assert.Less(t,
		strings.Index(p.Instructions, "1. Search"),
		strings.Index(p.Instructions, "3. Summarize"),
	)

	assert.Equal(t, "user", p.User.Role)
	assert.Equal(t, "Is the claim true?", p.User.Text())
}

func TestCompose_NoPersona(t *testing.T) {
	p := Compose("", []string{"Answer briefly."}, "What is Go?", nil)

	assert.True(t, strings.HasPrefix(p.Instructions, "Follow these steps"))
	assert.Contains(t, p.Instructions, "1. Answer briefly.")
}

func TestCompose_NoInstructions(t *testing.T) {
	p := Compose("You are terse.", nil, "Hello", nil)

	assert.Equal(t, "You are terse.", p.Instructions)
	assert.NotContains(t, p.Instructions, "Follow these steps")
}

func TestCompose_SideContextSortedAndAppended(t *testing.T) {
	p := Compose("", nil, "Summarize the paper.", map[string]string{
		"paper_id":           "1706.03762",
		"original_paper_url": "https://arxiv.org/abs/1706.03762",
	})

	text := p.User.Text()
	assert.Contains(t, text, "Additional context:")
	assert.Contains(t, text, "- paper_id: 1706.03762")
	assert.Contains(t, text, "- original_paper_url: https://arxiv.org/abs/1706.03762")
	// Keys appear in sorted order for determinism.
	assert.Less(t,
		strings.Index(text, "original_paper_url"),
		strings.Index(text, "paper_id"),
	)
	assert.True(t, strings.HasPrefix(text, "Summarize the paper."))
}

func TestCompose_Deterministic(t *testing.T) {
	sc := map[string]string{"a": "1", "b": "2", "c": "3"}
	first := Compose("p", []string{"i"}, "task", sc)
	for i := 0; i < 10; i++ {
		again := Compose("p", []string{"i"}, "task", sc)
		assert.Equal(t, first, again)
	}
}
