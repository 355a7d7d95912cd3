// Package chat composes transport calls into the user-facing operations of
// the front-end: answering a question with retrieved context and managing the
// uploaded document set.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bdelforge/verba-chat/internal/verba"
)

// unavailableMessage is the answer shown when the backend health probe fails.
const unavailableMessage = "Verba API not available"

// Assistant orchestrates the Verba client. Like the client it wraps, it is
// not safe for concurrent use.
type Assistant struct {
	client    *verba.Client
	chunkSize int
}

// New creates an Assistant. chunkSize is used for document uploads; pass 0
// to keep the payload default.
func New(client *verba.Client, chunkSize int) *Assistant {
	return &Assistant{client: client, chunkSize: chunkSize}
}

// Client exposes the underlying transport client for presentation-layer
// calls that need no orchestration (key management, title, cache reset).
func (a *Assistant) Client() *verba.Client {
	return a.client
}

// AnswerOptions constrains the generated answer length. Zero means unset;
// when only one bound is given the other is derived from it.
type AnswerOptions struct {
	MinWords int
	MaxWords int
}

// resolve fills in a missing bound: max defaults to twice min, min to half
// of max (integer floor).
func (o AnswerOptions) resolve() AnswerOptions {
	if o.MaxWords == 0 && o.MinWords != 0 {
		o.MaxWords = o.MinWords * 2
	}
	if o.MinWords == 0 && o.MaxWords != 0 {
		o.MinWords = o.MaxWords / 2
	}
	return o
}

// ElaboratePrompt appends the answer-length instruction to the prompt. The
// instruction is only added once both bounds are resolved; an unconstrained
// prompt passes through unchanged.
func ElaboratePrompt(prompt string, opts AnswerOptions) string {
	opts = opts.resolve()
	if opts.MinWords == 0 {
		return prompt
	}
	return fmt.Sprintf("%s Please provide an elaborated answer in %d to %d words.", prompt, opts.MinWords, opts.MaxWords)
}

// SearchDocuments elaborates the prompt and runs retrieval for it. The
// health probe runs first; when it fails the returned response carries the
// "service unavailable" system message and query is never issued.
func (a *Assistant) SearchDocuments(ctx context.Context, prompt string, opts AnswerOptions) (string, verba.QueryResponse) {
	elaborated := ElaboratePrompt(prompt, opts)
	slog.Info("cleaned user query", "query", elaborated)

	if status := a.client.CheckConnection(ctx); !status.OK {
		slog.Error("backend not available, query not submitted", "detail", status.Detail)
		msg := unavailableMessage
		return elaborated, verba.QueryResponse{System: &msg, Documents: []verba.DocumentChunk{}}
	}

	return elaborated, a.client.Query(ctx, elaborated)
}

// Answer is the outcome of one question.
type Answer struct {
	Text string
	// Documents backing the answer, empty when retrieval failed or was
	// skipped.
	Documents []verba.DocumentChunk
}

// GenerateAnswer runs the full ask-a-question flow: retrieval, then
// generation with the retrieved context and the given conversation history.
// A non-nil retrieval system message is propagated as the final answer and
// generation is skipped. A cached generation variant is unwrapped to its
// message text.
func (a *Assistant) GenerateAnswer(ctx context.Context, prompt string, opts AnswerOptions, conversation []verba.ConversationItem) Answer {
	elaborated, retrieved := a.SearchDocuments(ctx, prompt, opts)

	if retrieved.System != nil {
		return Answer{Text: *retrieved.System, Documents: retrieved.Documents}
	}

	generated := a.client.Generate(ctx, elaborated, retrieved.Context, conversation)
	return Answer{Text: generated.System.Answer(), Documents: retrieved.Documents}
}

// DocIDFromFilename resolves a document id from its filename within a
// listing. Filenames are unique per listing; returns "" when absent.
func DocIDFromFilename(filename string, docs []verba.DocumentListing) string {
	for _, d := range docs {
		if d.DocName == filename {
			return d.Additional.ID
		}
	}
	return ""
}

// OrderedFilenames returns all filenames of a listing sorted alphabetically
// for stable display.
func OrderedFilenames(docs []verba.DocumentListing) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.DocName
	}
	sort.Strings(names)
	return names
}
