package memory

import (
	"context"
	"log"
	"strings"

	"github.com/evermind-ai/recall/core"
	"github.com/evermind-ai/recall/llm"
)

// reformulateContextTurns caps how much recent dialogue conditions the query.
const reformulateContextTurns = 4

const reformulateInstructions = `Rewrite the user's message as a short search query for a long-term memory store. Resolve pronouns and references using the recent conversation. Keep it under roughly 20 words. Output only the query text, nothing else.`

// Reformulator converts a raw utterance plus recent context into a
// retrieval query better aligned with the store's indexed content. The
// result is purely advisory; downstream retrieval is a pure function of
// whatever string it is given.
type Reformulator struct {
	gen llm.Client
}

// NewReformulator creates a reformulator over the given generation client.
func NewReformulator(gen llm.Client) *Reformulator {
	return &Reformulator{gen: gen}
}

// Reformulate returns the optimized query, or the input unchanged when
// generation fails. Failure here never aborts the surrounding turn.
func (r *Reformulator) Reformulate(ctx context.Context, input string, recent []core.Turn) string {
	if strings.TrimSpace(input) == "" {
		return input
	}
	if len(recent) > reformulateContextTurns {
		recent = recent[len(recent)-reformulateContextTurns:]
	}

	var prompt strings.Builder
	if len(recent) > 0 {
		prompt.WriteString("Recent conversation:\n")
		for _, t := range recent {
			prompt.WriteString(string(t.Role))
			prompt.WriteString(": ")
			prompt.WriteString(t.Content)
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("Message: ")
	prompt.WriteString(input)

	out, err := r.gen.Complete(ctx, llm.Request{
		System:    reformulateInstructions,
		Messages:  []core.Turn{{Role: core.RoleUser, Content: prompt.String()}},
		MaxTokens: 128,
	})
	if err != nil {
		log.Printf("[MEMORY] Query reformulation failed, using raw input: %v", err)
		return input
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return input
	}
	return out
}
