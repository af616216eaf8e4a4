package components

import (
	"fmt"
	"sync"

	"github.com/polychat-ai/polychat/schema"
)

// Memory manages the chat history for an agent.
// It is safe for concurrent use. Overflow is handled two ways: a hard cap on
// the number of messages, and an optional token budget enforced with a
// TokenCounter. Oldest messages are evicted first in both cases.
type Memory struct {
	// history is the list of messages representing the chat history
	history []Message
	// turnID is the ID of the current turn
	turnID string
	// maxMessages is the maximum number of messages to keep in history
	maxMessages int
	// tokenBudget caps the total token count of the history, 0 means unlimited
	tokenBudget int
	counter     TokenCounter

	mtx sync.RWMutex
}

// NewMemory initializes the Memory with an empty history and an optional
// message cap.
func NewMemory(maxMessages int) *Memory {
	return &Memory{
		maxMessages: maxMessages,
		history:     make([]Message, 0, maxMessages+1),
	}
}

// MaxMessages returns the max number of messages
func (m *Memory) MaxMessages() int {
	return m.maxMessages
}

// SetMaxMessages set the max number of messages
func (m *Memory) SetMaxMessages(maxMessages int) *Memory {
	m.maxMessages = maxMessages
	return m
}

// SetTokenBudget enables token based eviction with the given counter.
func (m *Memory) SetTokenBudget(budget int, counter TokenCounter) *Memory {
	m.tokenBudget = budget
	m.counter = counter
	return m
}

// TurnID returns the current turn ID
func (m *Memory) TurnID() string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.turnID
}

// SetTurnID set the current turn ID
func (m *Memory) SetTurnID(turnID string) *Memory {
	m.mtx.Lock()
	m.turnID = turnID
	m.mtx.Unlock()
	return m
}

// NewTurn initializes a new turn by generating a random turn ID.
func (m *Memory) NewTurn() *Memory {
	return m.SetTurnID(NewTurnID())
}

// NewMessage adds a message to the chat history and manages overflow.
func (m *Memory) NewMessage(role MessageRole, content schema.Schema) *Message {
	m.mtx.Lock()
	msg := NewMessage(role, content).SetTurnID(m.turnID)
	m.history = append(m.history, *msg)
	if m.maxMessages > 0 && len(m.history) > m.maxMessages {
		m.history = m.history[1:]
	}
	m.evictOverBudget()
	m.mtx.Unlock()
	return msg
}

// evictOverBudget drops oldest messages until the history fits the token
// budget. Caller must hold the write lock.
func (m *Memory) evictOverBudget() {
	if m.tokenBudget <= 0 || m.counter == nil {
		return
	}
	total := 0
	for i := range m.history {
		total += m.counter.Count(schema.Stringify(m.history[i].Content()))
	}
	for total > m.tokenBudget && len(m.history) > 1 {
		total -= m.counter.Count(schema.Stringify(m.history[0].Content()))
		m.history = m.history[1:]
	}
}

// SetHistory set a copy of chat history
func (m *Memory) SetHistory(history []Message) *Memory {
	m.mtx.Lock()
	m.history = make([]Message, len(history))
	copy(m.history, history)
	m.mtx.Unlock()
	return m
}

// History retrieves a snapshot of the chat history.
func (m *Memory) History() []Message {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	out := make([]Message, len(m.history))
	copy(out, m.history)
	return out
}

// Copy copies the contents of src into this memory.
func (m *Memory) Copy(src *Memory) {
	m.SetMaxMessages(src.MaxMessages()).SetTurnID(src.TurnID())
	m.SetHistory(src.History())
}

// Reset clears the chat history.
func (m *Memory) Reset() *Memory {
	m.mtx.Lock()
	m.history = make([]Message, 0, m.maxMessages)
	m.turnID = ""
	m.mtx.Unlock()
	return m
}

// DeleteTurn deletes messages from the memory by turn ID.
// Returns an error if the specified turn ID is not found.
func (m *Memory) DeleteTurn(turnID string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	l := len(m.history)
	list := make([]Message, 0, l)
	for _, v := range m.history {
		if v.TurnID() == turnID {
			continue
		}
		list = append(list, v)
	}
	if len(list) == l {
		return fmt.Errorf("turnID %s not found in memory", turnID)
	}
	m.history = list
	if len(list) == 0 {
		m.turnID = ""
	} else if turnID == m.turnID {
		m.turnID = list[len(list)-1].TurnID()
	}
	return nil
}

// MessageCount returns the number of messages in the chat history.
func (m *Memory) MessageCount() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.history)
}
