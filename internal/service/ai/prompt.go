package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
)

// BuildSystemPrompt describes the assistant and its tools to the model.
func BuildSystemPrompt(profile assistant.Profile, tools []search.Tool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a %s. Your tone is %s.\n", profile.Name, profile.Title, profile.Tone)
	if profile.PromptHint != "" {
		b.WriteString(profile.PromptHint)
		b.WriteString("\n")
	}

	if len(tools) > 0 {
		b.WriteString("\nYou can call these tools, each takes a single \"query\" string:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
	}

	if len(profile.Rules) > 0 {
		b.WriteString("\nRules:\n")
		for _, rule := range profile.Rules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}

	b.WriteString("\nThe conversation so far follows. Answer the latest user message.")
	return b.String()
}
