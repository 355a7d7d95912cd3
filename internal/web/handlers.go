// Package web is the browser front-end: a minimal chat page plus JSON and
// SSE endpoints over the orchestration layer. It is thin presentation glue;
// all behavior lives in internal/chat and internal/verba.
package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bdelforge/verba-chat/internal/chat"
	"github.com/bdelforge/verba-chat/internal/session"
	"github.com/bdelforge/verba-chat/internal/titlestore"
	"github.com/bdelforge/verba-chat/internal/verba"
)

const maxRequestBodySize = 32 << 20 // base64 file uploads included

// Deps holds the front-end dependencies. NewClient builds a fresh transport
// client per request, mirroring the one-interaction-at-a-time model: the
// client is not safe for concurrent use, so it is never shared across
// requests.
type Deps struct {
	NewClient func() *verba.Client
	ChunkSize int
	Titles    *titlestore.Store
	Tenant    string
	Sessions  *SessionRegistry
}

// NewHandler returns the front-end HTTP handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/", handleIndex(deps))
	r.Get("/health", handleHealth(deps))

	r.Post("/ask", handleAsk(deps))
	r.Get("/ask/stream", handleAskStream(deps))
	r.Post("/conversation/reset", handleConversationReset(deps))
	r.Get("/prompts", handlePrompts(deps))
	r.Get("/prompts/chunks", handlePromptChunks(deps))

	r.Get("/documents", handleListDocuments(deps))
	r.Post("/documents", handleUploadDocuments(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Delete("/documents/{id}", handleDeleteDocument(deps))

	r.Get("/title", handleGetTitle(deps))
	r.Put("/title", handleSetTitle(deps))
	r.Delete("/title", handleResetTitle(deps))

	r.Get("/key/preview", handleKeyPreview(deps))
	r.Post("/key", handleSetKey(deps))
	r.Delete("/key", handleUnsetKey(deps))
	r.Post("/key/test", handleTestKey(deps))

	r.Post("/cache/reset", handleCacheReset(deps))

	return r
}

func handleIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, err := deps.Titles.Get(deps.Tenant)
		if err != nil {
			// A title lookup failure must never break the page.
			slog.Warn("could not load chatbot title", "error", err)
			title = titlestore.DefaultTitle
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTmpl.Execute(w, struct{ Title string }{Title: title}); err != nil {
			slog.Error("rendering chat page failed", "error", err)
		}
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		status := client.CheckConnection(r.Context())
		writeJSON(w, map[string]any{
			"is_ok":         status.OK,
			"key_missing":   status.KeyMissing,
			"error_details": status.Detail,
		})
	}
}

type askRequest struct {
	Prompt   string `json:"prompt"`
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		sess := deps.Sessions.Get(w, r)
		client := deps.NewClient()
		defer client.Close()
		assistant := chat.New(client, deps.ChunkSize)

		sess.AppendTurn(session.RoleUser, req.Prompt, true)
		conversation := sess.ConversationPayload()

		answer := assistant.GenerateAnswer(r.Context(), req.Prompt,
			chat.AnswerOptions{MinWords: req.MinWords, MaxWords: req.MaxWords}, conversation)

		sess.RecordRetrieval(req.Prompt, answer.Documents)
		sess.AppendTurn(session.RoleSystem, answer.Text, false)

		writeJSON(w, map[string]any{
			"answer":    answer.Text,
			"documents": answer.Documents,
		})
	}
}

// handleAskStream answers over SSE, one data event per fragment, closed by a
// "done" event. The browser renders fragments as they arrive.
func handleAskStream(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		prompt := r.URL.Query().Get("prompt")
		if prompt == "" {
			httpError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		minWords, _ := strconv.Atoi(r.URL.Query().Get("min_words"))
		maxWords, _ := strconv.Atoi(r.URL.Query().Get("max_words"))

		sess := deps.Sessions.Get(w, r)
		client := deps.NewClient()
		defer client.Close()
		assistant := chat.New(client, deps.ChunkSize)

		sess.AppendTurn(session.RoleUser, prompt, true)
		conversation := sess.ConversationPayload()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		opts := chat.AnswerOptions{MinWords: minWords, MaxWords: maxWords}
		elaborated, retrieved := assistant.SearchDocuments(r.Context(), prompt, opts)

		full := ""
		if retrieved.System != nil {
			full = *retrieved.System
			sendEvent(w, flusher, full)
		} else {
			stream, err := client.GenerateStream(r.Context(), elaborated, retrieved.Context, conversation)
			if err != nil {
				slog.Error("could not open generation stream", "error", err)
				full = "Something went wrong when generating your answer, details: " + err.Error()
				sendEvent(w, flusher, full)
			} else {
				defer stream.Close()
				for {
					fragment, err := stream.Next()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						slog.Error("stream read failed", "error", err)
						break
					}
					full += fragment
					sendEvent(w, flusher, fragment)
				}
			}
		}

		sess.RecordRetrieval(prompt, retrieved.Documents)
		sess.AppendTurn(session.RoleSystem, full, false)

		fmt.Fprint(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
	}
}

func sendEvent(w io.Writer, flusher http.Flusher, fragment string) {
	payload, err := json.Marshal(map[string]string{"message": fragment})
	if err != nil {
		slog.Error("failed to marshal stream fragment", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func handleConversationReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Sessions.Get(w, r).Reset()
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func handlePrompts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"prompts": deps.Sessions.Get(w, r).PromptHistory()})
	}
}

func handlePromptChunks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prompt := r.URL.Query().Get("prompt")
		writeJSON(w, map[string]any{"chunks": deps.Sessions.Get(w, r).ChunksForPrompt(prompt)})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		listing := client.GetAllDocuments(r.Context(), r.URL.Query().Get("query"), r.URL.Query().Get("doc_type"))
		writeJSON(w, listing)
	}
}

type uploadRequest struct {
	DocumentType string `json:"document_type"`
	Chunker      string `json:"chunker"`
	Files        []struct {
		Name    string `json:"name"`
		Content string `json:"content"` // base64
	} `json:"files"`
}

func handleUploadDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if len(req.Files) == 0 {
			httpError(w, http.StatusBadRequest, "no files provided")
			return
		}

		files := make([]chat.UploadFile, len(req.Files))
		for i, f := range req.Files {
			data, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "file %s is not valid base64: %v", f.Name, err)
				return
			}
			files[i] = chat.UploadFile{Name: f.Name, Data: data}
		}

		client := deps.NewClient()
		defer client.Close()
		assistant := chat.New(client, deps.ChunkSize)

		result := assistant.UploadDocuments(r.Context(), files, req.DocumentType, req.Chunker)
		writeJSON(w, map[string]any{
			"status":     result.Response.Status,
			"status_msg": result.Response.StatusMsg,
			"replaced":   result.Replaced,
		})
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		doc := client.GetDocument(r.Context(), chi.URLParam(r, "id")).Document
		if doc.IsEmpty() {
			httpError(w, http.StatusNotFound, "document not found")
			return
		}
		writeJSON(w, doc)
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		if !client.DeleteDocument(r.Context(), chi.URLParam(r, "id")) {
			httpError(w, http.StatusBadGateway, "delete failed")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleGetTitle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, err := deps.Titles.Get(deps.Tenant)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "title lookup failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"title": title})
	}
}

func handleSetTitle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
			httpError(w, http.StatusBadRequest, "a non-empty title is required")
			return
		}
		if err := deps.Titles.Set(deps.Tenant, req.Title); err != nil {
			httpError(w, http.StatusInternalServerError, "storing title failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"title": req.Title})
	}
}

func handleResetTitle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Titles.Reset(deps.Tenant); err != nil {
			httpError(w, http.StatusInternalServerError, "resetting title failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"title": titlestore.DefaultTitle})
	}
}

func handleKeyPreview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()
		writeJSON(w, map[string]string{"preview": client.GetOpenAIKeyPreview(r.Context())})
	}
}

func handleSetKey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
			httpError(w, http.StatusBadRequest, "a non-empty key is required")
			return
		}

		client := deps.NewClient()
		defer client.Close()
		writeJSON(w, client.SetOpenAIKey(r.Context(), req.Key))
	}
}

func handleUnsetKey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		if !client.UnsetOpenAIKey(r.Context()) {
			httpError(w, http.StatusBadGateway, "key removal failed")
			return
		}
		writeJSON(w, map[string]string{"status": "removed"})
	}
}

func handleTestKey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()
		writeJSON(w, client.TestOpenAIKey(r.Context()))
	}
}

func handleCacheReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := deps.NewClient()
		defer client.Close()

		if !client.ResetCache(r.Context()) {
			httpError(w, http.StatusBadGateway, "cache reset failed")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf(format, args...)})
}
