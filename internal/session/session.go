// Package session holds the ephemeral per-session state of one chat: the
// ordered conversation and the retrieval history backing each answered
// prompt. Nothing here is persisted; a session lives from creation until
// Reset or process exit.
package session

import (
	"sort"

	"github.com/bdelforge/verba-chat/internal/verba"
)

// Conversation roles as the backend expects them.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Turn is one message of the conversation.
type Turn struct {
	Role    string
	Content string
	// Pending marks an as-yet-unanswered user prompt. A trailing pending
	// turn is excluded from conversation payloads.
	Pending bool
	// Transient turns (the welcome message) are shown to the user but never
	// enter a conversation payload.
	Transient bool
}

type retrieval struct {
	prompt string
	chunks []verba.DocumentChunk
}

// Session is the derived-state cache for one user session. It is not safe
// for concurrent use; each interaction runs to completion before the next.
type Session struct {
	turns      []Turn
	retrievals []retrieval
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// AppendTurn appends a conversation turn. pending should be true for a user
// prompt that has not been answered yet.
func (s *Session) AppendTurn(role, content string, pending bool) {
	s.turns = append(s.turns, Turn{Role: role, Content: content, Pending: pending})
}

// AppendTransient appends a turn that is displayed but kept out of any
// conversation payload, such as the initial welcome message.
func (s *Session) AppendTransient(role, content string) {
	s.turns = append(s.turns, Turn{Role: role, Content: content, Transient: true})
}

// Turns returns the ordered conversation for display.
func (s *Session) Turns() []Turn {
	return s.turns
}

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// ConversationPayload projects the conversation into the history the backend
// expects: transient turns are dropped, and a trailing pending prompt is left
// out because it is the question currently being answered.
func (s *Session) ConversationPayload() []verba.ConversationItem {
	items := make([]verba.ConversationItem, 0, len(s.turns))
	for i, t := range s.turns {
		if t.Transient {
			continue
		}
		if t.Pending && i == len(s.turns)-1 {
			continue
		}
		items = append(items, verba.ConversationItem{
			Type:       t.Role,
			Content:    t.Content,
			Typewriter: t.Pending,
		})
	}
	return items
}

// RecordRetrieval associates a prompt with the chunks retrieved for it.
// History is cumulative: a repeated prompt gets a new entry rather than
// overwriting the old one. Chunks are stored sorted by descending score.
func (s *Session) RecordRetrieval(prompt string, chunks []verba.DocumentChunk) {
	sorted := make([]verba.DocumentChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	s.retrievals = append(s.retrievals, retrieval{prompt: prompt, chunks: sorted})
}

// PromptHistory returns the distinct prompts with recorded retrievals, most
// recent first.
func (s *Session) PromptHistory() []string {
	seen := make(map[string]bool, len(s.retrievals))
	prompts := make([]string, 0, len(s.retrievals))
	for i := len(s.retrievals) - 1; i >= 0; i-- {
		p := s.retrievals[i].prompt
		if seen[p] {
			continue
		}
		seen[p] = true
		prompts = append(prompts, p)
	}
	return prompts
}

// ChunksForPrompt returns the chunks of the most recent retrieval recorded
// for prompt, sorted by descending score, or an empty slice when the prompt
// was never recorded.
func (s *Session) ChunksForPrompt(prompt string) []verba.DocumentChunk {
	for i := len(s.retrievals) - 1; i >= 0; i-- {
		if s.retrievals[i].prompt == prompt {
			return s.retrievals[i].chunks
		}
	}
	return []verba.DocumentChunk{}
}

// Reset clears both the conversation and the retrieval history. Only an
// explicit user action should trigger this.
func (s *Session) Reset() {
	s.turns = nil
	s.retrievals = nil
}
