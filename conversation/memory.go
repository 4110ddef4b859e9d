package conversation

import (
	"strings"
	"sync"

	"voicerelay/core"
)

// llmContextWindow is how many trailing messages are surfaced to the LLM.
const llmContextWindow = 20

// RollingMemory is the bounded conversational transcript for one session.
// Messages accumulate in insertion order; only the trailing window is handed
// to the LLM.
type RollingMemory struct {
	mu       sync.Mutex
	messages []core.LLMMessage
}

func NewRollingMemory() *RollingMemory {
	return &RollingMemory{}
}

// Append records a message. Blank content is never appended.
func (m *RollingMemory) Append(role core.LLMMessageRole, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, core.LLMMessage{Role: role, Message: content})
}

// ContextForLLM returns a copy of the last llmContextWindow messages in
// original relative order.
func (m *RollingMemory) ContextForLLM() []core.LLMMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if len(m.messages) > llmContextWindow {
		start = len(m.messages) - llmContextWindow
	}
	out := make([]core.LLMMessage, len(m.messages)-start)
	copy(out, m.messages[start:])
	return out
}

// Len returns the total number of recorded messages.
func (m *RollingMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
