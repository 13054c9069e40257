package conversation

import (
	"fmt"
	"strings"
	"time"
)

// PromptContext carries what the system prompt needs about the current
// request.
type PromptContext struct {
	UserName     string
	LastEntityID string
	Now          time.Time
}

const basePrompt = `You are a voice assistant for a smart home.
Your job is to help the user control devices and answer questions about the home.
Be concise: answers are spoken aloud.

Rules:
- Use the provided tools for every device action or state question. Never invent device names, ids or states.
- Use the 'name' argument with the device name exactly as the user says it.
- When the user says "all lights in the kitchen", use {"area": "kitchen", "domain": "light"}.
- Use 'floor' to target a whole floor (e.g. {"floor": "upstairs", "domain": "light"}).
- For colors, pass the user's description in the 'color' argument ("red", "warm white", "the color of the sky").
- Do not mention tools, function calls or internal steps in your answers.
- If a tool reports an ambiguous target, ask the user which device they meant.`

// BuildSystemPrompt renders the system message for one turn.
func BuildSystemPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\nCurrent context:\n")
	if pc.UserName != "" {
		fmt.Fprintf(&b, "- User: %s\n", pc.UserName)
	}
	now := pc.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "- Time: %s\n", now.Format("2006-01-02 15:04:05"))
	if pc.LastEntityID != "" {
		fmt.Fprintf(&b, "- If the user says \"it\" or \"that\", they most likely mean the device with id %s.\n", pc.LastEntityID)
	}
	return b.String()
}
