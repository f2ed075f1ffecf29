package chat

import (
	"context"
	"strings"
)

// ScriptedAssistant is the built-in fallback used when no LLM upstream is
// configured. It answers a handful of common onboarding questions by
// keyword and otherwise points at a human.
type ScriptedAssistant struct{}

func NewScriptedAssistant() *ScriptedAssistant {
	return &ScriptedAssistant{}
}

var scriptedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"hello", "hi", "hey"},
		reply:    "Hi! I'm the onboarding assistant. Ask me anything about getting started.",
	},
	{
		keywords: []string{"login", "log in", "magic link"},
		reply:    "You sign in with a magic link: request one with your email and open it within 15 minutes. Each link works once.",
	},
	{
		keywords: []string{"password"},
		reply:    "There are no passwords here. Request a magic link with your email instead.",
	},
	{
		keywords: []string{"help", "support", "human"},
		reply:    "I'll flag this for the team. Someone will follow up by email.",
	},
}

func (a *ScriptedAssistant) Reply(ctx context.Context, sessionID, message string) (string, error) {
	m := strings.ToLower(message)
	for _, s := range scriptedReplies {
		for _, kw := range s.keywords {
			if strings.Contains(m, kw) {
				return s.reply, nil
			}
		}
	}
	return "I'm not sure about that one. Could you rephrase, or ask for a human?", nil
}
