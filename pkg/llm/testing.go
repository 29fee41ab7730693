package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays a fixed sequence of responses. Each call to any of
// the Client methods consumes the next script entry; a nil Err entry yields
// the entry's Text (or Message for tool completions). Used by tests to drive
// the researcher loop and synthesis deterministically.
type ScriptedClient struct {
	mu      sync.Mutex
	Script  []ScriptEntry
	cursor  int
	History [][]Message // conversations passed to CompleteWithTools, in order
	Prompts []string    // prompts passed to Complete/CompleteJSON, in order
}

// ScriptEntry is one canned response.
type ScriptEntry struct {
	Text    string
	Message *AssistantMessage
	Err     error
}

func (s *ScriptedClient) next() (ScriptEntry, error) {
	if s.cursor >= len(s.Script) {
		return ScriptEntry{}, fmt.Errorf("scripted client exhausted after %d calls", s.cursor)
	}
	entry := s.Script[s.cursor]
	s.cursor++
	return entry, nil
}

// Complete returns the next scripted text.
func (s *ScriptedClient) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	entry, err := s.next()
	if err != nil {
		return "", err
	}
	return entry.Text, entry.Err
}

// CompleteJSON decodes the next scripted text into out.
func (s *ScriptedClient) CompleteJSON(_ context.Context, prompt string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	entry, err := s.next()
	if err != nil {
		return err
	}
	if entry.Err != nil {
		return entry.Err
	}
	return decodeStrict(entry.Text, out)
}

// CompleteWithTools returns the next scripted assistant message.
func (s *ScriptedClient) CompleteWithTools(_ context.Context, messages []Message, _ []ToolDefinition, _ ToolChoice) (*AssistantMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	s.History = append(s.History, snapshot)
	entry, err := s.next()
	if err != nil {
		return nil, err
	}
	if entry.Err != nil {
		return nil, entry.Err
	}
	if entry.Message != nil {
		return entry.Message, nil
	}
	return &AssistantMessage{Content: entry.Text}, nil
}

// Calls returns how many script entries have been consumed.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
