package verba

import (
	"encoding/json"
	"fmt"
)

// Reader, chunker and embedder component names understood by the backend.
const (
	ReaderSimple    = "SimpleReader"
	ChunkerToken    = "TokenChunker"
	ChunkerWord     = "WordChunker"
	EmbedderADA     = "ADAEmbedder"
	defaultChunkImp = ChunkerToken
)

// QueryPayload is the JSON body for POST /api/query.
type QueryPayload struct {
	Query string `json:"query"`
}

// DocumentChunk is one retrieved segment of a document with its relevance
// score. Chunks are produced by the backend and never mutated client-side.
type DocumentChunk struct {
	Text    string  `json:"text"`
	DocName string  `json:"doc_name"`
	ChunkID int     `json:"chunk_id"`
	DocUUID string  `json:"doc_uuid"`
	DocType string  `json:"doc_type"`
	Score   float64 `json:"score"`
}

// QueryResponse is the JSON returned by POST /api/query.
// A non-nil System indicates a retrieval-side error message that should be
// shown to the user instead of running generation.
type QueryResponse struct {
	Documents []DocumentChunk `json:"documents"`
	Context   string          `json:"context"`
	System    *string         `json:"system"`
}

// SearchQueryPayload is the JSON body for POST /api/get_all_documents.
type SearchQueryPayload struct {
	Query   string `json:"query"`
	DocType string `json:"doc_type"`
}

// DocumentListing is one entry of the get_all_documents response.
type DocumentListing struct {
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
	DocLink string `json:"doc_link"`
	DocName string `json:"doc_name"`
	DocType string `json:"doc_type"`
}

// SearchQueryResponse is the JSON returned by POST /api/get_all_documents.
type SearchQueryResponse struct {
	Documents       []DocumentListing `json:"documents"`
	DocTypes        []string          `json:"doc_types"`
	CurrentEmbedder string            `json:"current_embedder"`
}

// GetDocumentPayload is the JSON body for POST /api/get_document and
// POST /api/delete_document.
type GetDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

// DocumentProperties carries the stored attributes of an uploaded document.
type DocumentProperties struct {
	ChunkCount int    `json:"chunk_count"`
	DocLink    string `json:"doc_link"`
	DocName    string `json:"doc_name"`
	DocType    string `json:"doc_type"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
}

// Document is a whole uploaded document as returned by get_document.
type Document struct {
	Class              string             `json:"class"`
	CreationTimeUnix   int64              `json:"creationTimeUnix"`
	ID                 string             `json:"id"`
	LastUpdateTimeUnix int64              `json:"lastUpdateTimeUnix"`
	Properties         DocumentProperties `json:"properties"`
	Tenant             string             `json:"tenant"`
}

// IsEmpty reports whether the document is the zero value, which is what the
// client returns when the backend call fails. Callers check this instead of
// handling an error.
func (d Document) IsEmpty() bool {
	return d.ID == "" && d.Properties.DocName == ""
}

// GetDocumentResponse is the JSON returned by POST /api/get_document.
type GetDocumentResponse struct {
	Document Document `json:"document"`
}

// ConversationItem is one turn of chat history as the backend expects it.
// Type is "user" or "system". Typewriter marks an as-yet-unanswered user
// prompt; such a trailing turn is excluded from history payloads.
type ConversationItem struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Typewriter bool   `json:"typewriter"`
}

// GeneratePayload is the JSON body for POST /api/generate.
type GeneratePayload struct {
	Query        string             `json:"query"`
	Context      string             `json:"context"`
	Conversation []ConversationItem `json:"conversation"`
}

// CachedResponse is the variant of a generate answer served from the
// backend's own semantic cache.
type CachedResponse struct {
	Message      string  `json:"message"`
	FinishReason string  `json:"finish_reason"`
	Cached       bool    `json:"cached"`
	Distance     float64 `json:"distance"`
}

// GenerateResult is the `system` field of a generate response: either plain
// generated text or a CachedResponse object. Resolve it with Answer so
// downstream code only ever sees text.
type GenerateResult struct {
	Text   string
	Cached *CachedResponse
}

// Answer returns the user-visible text, unwrapping the cached variant.
func (r GenerateResult) Answer() string {
	if r.Cached != nil {
		return r.Cached.Message
	}
	return r.Text
}

func (r GenerateResult) MarshalJSON() ([]byte, error) {
	if r.Cached != nil {
		return json.Marshal(r.Cached)
	}
	return json.Marshal(r.Text)
}

func (r *GenerateResult) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Text = s
		r.Cached = nil
		return nil
	}
	var c CachedResponse
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("system is neither string nor cached response: %w", err)
	}
	r.Text = ""
	r.Cached = &c
	return nil
}

// GenerateResponse is the JSON returned by POST /api/generate.
type GenerateResponse struct {
	System GenerateResult `json:"system"`
}

// LoadPayload is the JSON body for POST /api/load_data. FileBytes entries are
// base64-encoded and positionally paired with FileNames.
type LoadPayload struct {
	Reader       string   `json:"reader"`
	Chunker      string   `json:"chunker"`
	Embedder     string   `json:"embedder"`
	FileBytes    []string `json:"fileBytes"`
	FileNames    []string `json:"fileNames"`
	FilePath     string   `json:"filePath"`
	DocumentType string   `json:"document_type"`
	ChunkUnits   int      `json:"chunkUnits"`
	ChunkOverlap int      `json:"chunkOverlap"`
}

// NewLoadPayload returns a LoadPayload with the backend's default components.
func NewLoadPayload(documentType string) LoadPayload {
	return LoadPayload{
		Reader:       ReaderSimple,
		Chunker:      defaultChunkImp,
		Embedder:     EmbedderADA,
		DocumentType: documentType,
		ChunkUnits:   100,
		ChunkOverlap: 50,
	}
}

// LoadResponse is the JSON returned by POST /api/load_data.
type LoadResponse struct {
	Status    int    `json:"status"`
	StatusMsg string `json:"status_msg"`
}

// APIKeyPayload is the JSON body for POST /api/set_openai_key.
type APIKeyPayload struct {
	Key string `json:"key"`
}

// APIKeyResponse is the JSON returned by the key management endpoints.
// Status is a stringified HTTP code ("200" on success).
type APIKeyResponse struct {
	Status    string `json:"status"`
	StatusMsg string `json:"status_msg"`
}
