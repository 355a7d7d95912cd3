// Package mcpserver exposes the chatbot and its document set as MCP tools so
// agent hosts can query the same backend the chat front-end talks to.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bdelforge/verba-chat/internal/chat"
	"github.com/bdelforge/verba-chat/internal/verba"
)

// AnswerProvider abstracts answer generation for the MCP layer.
type AnswerProvider interface {
	GenerateAnswer(ctx context.Context, prompt string, opts chat.AnswerOptions, conversation []verba.ConversationItem) chat.Answer
}

// DocumentBrowser abstracts document listing and retrieval.
type DocumentBrowser interface {
	GetAllDocuments(ctx context.Context, query, docType string) verba.SearchQueryResponse
	GetDocument(ctx context.Context, documentID string) verba.GetDocumentResponse
}

// Deps holds the dependencies of the MCP server.
type Deps struct {
	Assistant AnswerProvider
	Documents DocumentBrowser
}

// NewServer creates an MCP server with the chatbot tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"verba-chat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("verba-chat: question answering over the documents uploaded to a Verba RAG backend."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_chatbot",
			mcp.WithDescription("Ask a question answered from the uploaded documents, with source chunks."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("min_words", mcp.Description("Optional lower bound on answer length in words")),
			mcp.WithNumber("max_words", mcp.Description("Optional upper bound on answer length in words")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("List the documents uploaded to the backend, optionally filtered."),
			mcp.WithString("query", mcp.Description("Optional search filter")),
			mcp.WithString("doc_type", mcp.Description("Optional document type filter")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("get_document",
			mcp.WithDescription("Fetch the full text and metadata of one uploaded document by id."),
			mcp.WithString("document_id", mcp.Description("Document id from search_documents"), mcp.Required()),
		),
		mcpGetDocument(deps),
	)

	return s
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		opts := chat.AnswerOptions{
			MinWords: req.GetInt("min_words", 0),
			MaxWords: req.GetInt("max_words", 0),
		}

		answer := deps.Assistant.GenerateAnswer(ctx, question, opts, nil)

		type source struct {
			DocName string  `json:"doc_name"`
			ChunkID int     `json:"chunk_id"`
			Score   float64 `json:"score"`
		}
		sources := make([]source, len(answer.Documents))
		for i, d := range answer.Documents {
			sources[i] = source{DocName: d.DocName, ChunkID: d.ChunkID, Score: d.Score}
		}

		b, err := json.Marshal(map[string]any{
			"answer":  answer.Text,
			"sources": sources,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchDocuments(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		docType := req.GetString("doc_type", "")

		listing := deps.Documents.GetAllDocuments(ctx, query, docType)

		type docResult struct {
			ID      string `json:"id"`
			DocName string `json:"doc_name"`
			DocType string `json:"doc_type"`
			DocLink string `json:"doc_link,omitempty"`
		}
		results := make([]docResult, len(listing.Documents))
		for i, d := range listing.Documents {
			results[i] = docResult{
				ID:      d.Additional.ID,
				DocName: d.DocName,
				DocType: d.DocType,
				DocLink: d.DocLink,
			}
		}

		b, err := json.Marshal(map[string]any{
			"documents":        results,
			"doc_types":        listing.DocTypes,
			"current_embedder": listing.CurrentEmbedder,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal listing: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		doc := deps.Documents.GetDocument(ctx, id).Document
		if doc.IsEmpty() {
			return mcpError(fmt.Sprintf("document %s not found", id)), nil
		}

		b, err := json.Marshal(map[string]any{
			"id":          doc.ID,
			"doc_name":    doc.Properties.DocName,
			"doc_type":    doc.Properties.DocType,
			"timestamp":   doc.Properties.Timestamp,
			"chunk_count": doc.Properties.ChunkCount,
			"text":        doc.Properties.Text,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal document: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
