package verba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Backend API route names, appended to the base API URL.
const (
	routeHealth              = "health"
	routeQuery               = "query"
	routeGenerate            = "generate"
	routeResetCache          = "reset_cache"
	routeGetAllDocuments     = "get_all_documents"
	routeGetDocument         = "get_document"
	routeLoadData            = "load_data"
	routeDeleteDocument      = "delete_document"
	routeSetOpenAIKey        = "set_openai_key"
	routeGetOpenAIKeyPreview = "get_openai_key_preview"
	routeUnsetOpenAIKey      = "unset_openai_key"
	routeTestOpenAIKey       = "test_openai_api_key"
)

// queryFallback is shown when the query endpoint fails or returns an
// unparseable payload.
const queryFallback = "Sorry, something went wrong when proceeding your request"

// keyMissingHint is the fragment the backend embeds in error messages when no
// OpenAI key has been uploaded yet.
const keyMissingHint = "upload a key using /api/set_openai_key"

const defaultTimeout = 60 * time.Second

// RetryPolicy bounds the health-check retry loop. Waits grow exponentially
// from BaseWait, capped at MaxWait.
type RetryPolicy struct {
	Attempts int
	BaseWait time.Duration
	MaxWait  time.Duration
}

// DefaultRetryPolicy tolerates a backend cold start: four attempts with
// 2s/4s/8s waits in between, about 14 seconds in total.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 4,
	BaseWait: 2 * time.Second,
	MaxWait:  10 * time.Second,
}

// Wait returns the pause before retry attempt i (0-based index of the attempt
// that just failed).
func (p RetryPolicy) Wait(i int) time.Duration {
	w := p.BaseWait << i
	if w > p.MaxWait || w <= 0 {
		return p.MaxWait
	}
	return w
}

// Client is the sole path to the Verba backend. It owns one reusable HTTP
// client for its lifetime; release it with Close. Backend failures are
// converted into typed degraded results rather than returned as errors, so
// callers only ever see well-formed payloads.
//
// A Client is not safe for concurrent use.
type Client struct {
	baseAPIURL string
	httpClient *http.Client
	retry      RetryPolicy
}

// New creates a Client for a backend at baseURL (scheme + host) and port.
// The resulting API base is "{baseURL}:{port}/api".
func New(baseURL string, port int) *Client {
	return NewWithBaseAPIURL(fmt.Sprintf("%s:%d/api", strings.TrimRight(baseURL, "/"), port))
}

// NewWithBaseAPIURL creates a Client from a complete API base URL. Used by
// tests that point at an httptest server.
func NewWithBaseAPIURL(baseAPIURL string) *Client {
	return &Client{
		baseAPIURL: strings.TrimRight(baseAPIURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retry:      DefaultRetryPolicy,
	}
}

// SetRetryPolicy overrides the health-check retry policy.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// BuildURL returns the full URL for a backend route.
func (c *Client) BuildURL(endpoint string) string {
	return c.baseAPIURL + "/" + endpoint
}

// Close releases the client's pooled connections. Safe to defer at
// construction time; all exit paths release the transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// request issues one HTTP call with an optional JSON body. Every call is
// logged at info level with method and URL; bodies never are, so the API key
// cannot leak into logs.
func (c *Client) request(ctx context.Context, method, endpoint string, payload any) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := c.BuildURL(endpoint)
	slog.Info("sending request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// readBody drains and closes the response body.
func readBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return body
}

// HealthCheck probes the health endpoint, retrying with bounded exponential
// backoff to tolerate a backend that is still warming up. It returns a non-nil
// error once all attempts are exhausted; the caller must treat that as
// "service unavailable", never as fatal.
func (c *Client) HealthCheck(ctx context.Context) error {
	var lastErr error
	for attempt := range c.retry.Attempts {
		resp, err := c.request(ctx, http.MethodGet, routeHealth, nil)
		if err == nil {
			body := readBody(resp)
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("health returned %d: %s", resp.StatusCode, string(body))
			slog.Warn("health check failed", "status", resp.StatusCode, "body", string(body))
		} else {
			lastErr = err
			slog.Warn("health check failed", "error", err)
		}

		if attempt < c.retry.Attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry.Wait(attempt)):
			}
		}
	}
	return fmt.Errorf("backend not healthy after %d attempts: %w", c.retry.Attempts, lastErr)
}

// ConnectionStatus is the outcome of CheckConnection.
type ConnectionStatus struct {
	OK bool
	// KeyMissing is set when the backend is up but refuses to serve because
	// no OpenAI key has been uploaded yet.
	KeyMissing bool
	Detail     string
}

// CheckConnection runs the retried health check and classifies the failure.
// A backend message mentioning set_openai_key is surfaced as the distinct
// "key not configured" state rather than a generic connection error.
func (c *Client) CheckConnection(ctx context.Context) ConnectionStatus {
	err := c.HealthCheck(ctx)
	if err == nil {
		return ConnectionStatus{OK: true}
	}
	detail := fmt.Sprintf("connection error: %v, make sure the Verba backend is running or accessible at %s", err, c.BuildURL(routeHealth))
	slog.Error("backend not reachable", "url", c.BuildURL(routeHealth), "error", err)
	return ConnectionStatus{
		KeyMissing: strings.Contains(err.Error(), keyMissingHint),
		Detail:     detail,
	}
}

// Query runs retrieval for the given text. It never fails: on transport
// errors, non-200 statuses, or undecodable payloads it returns a response
// whose System explains that something went wrong and whose document list is
// empty.
func (c *Client) Query(ctx context.Context, text string) QueryResponse {
	fallback := func() QueryResponse {
		msg := queryFallback
		return QueryResponse{System: &msg, Documents: []DocumentChunk{}}
	}

	resp, err := c.request(ctx, http.MethodPost, routeQuery, QueryPayload{Query: text})
	if err != nil {
		slog.Warn("query request failed", "error", err)
		return fallback()
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("query returned non-200", "status", resp.StatusCode, "body", string(body))
		return fallback()
	}

	var out QueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode query response", "body", string(body), "error", err)
		return fallback()
	}
	return out
}

// Generate asks the backend to generate an answer for query given the shared
// context and prior conversation. On failure the returned System embeds the
// raw error payload so an operator can diagnose the backend, but the call
// itself never fails.
func (c *Client) Generate(ctx context.Context, query, docContext string, conversation []ConversationItem) GenerateResponse {
	failure := func(detail string) GenerateResponse {
		return GenerateResponse{System: GenerateResult{
			Text: "Something went wrong when generating your answer, details: " + detail,
		}}
	}

	payload := GeneratePayload{Query: query, Context: docContext, Conversation: conversation}
	resp, err := c.request(ctx, http.MethodPost, routeGenerate, payload)
	if err != nil {
		slog.Error("generate request failed", "error", err)
		return failure(err.Error())
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Error("generate returned non-200", "status", resp.StatusCode, "body", string(body))
		return failure(fmt.Sprintf("[%d] %s", resp.StatusCode, string(body)))
	}

	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode generate response", "body", string(body), "error", err)
		return failure(err.Error())
	}
	return out
}

// GetAllDocuments lists uploaded documents, optionally filtered by a search
// query and a document type. Returns an empty listing on failure.
func (c *Client) GetAllDocuments(ctx context.Context, query, docType string) SearchQueryResponse {
	resp, err := c.request(ctx, http.MethodPost, routeGetAllDocuments, SearchQueryPayload{Query: query, DocType: docType})
	if err != nil {
		slog.Warn("get_all_documents request failed", "error", err)
		return SearchQueryResponse{Documents: []DocumentListing{}, DocTypes: []string{}}
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("get_all_documents returned non-200", "status", resp.StatusCode)
		return SearchQueryResponse{Documents: []DocumentListing{}, DocTypes: []string{}}
	}

	var out SearchQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode get_all_documents response", "body", string(body), "error", err)
		return SearchQueryResponse{Documents: []DocumentListing{}, DocTypes: []string{}}
	}
	return out
}

// GetDocument fetches one full document record by id. Returns the zero
// document on failure; callers check Document.IsEmpty.
func (c *Client) GetDocument(ctx context.Context, documentID string) GetDocumentResponse {
	resp, err := c.request(ctx, http.MethodPost, routeGetDocument, GetDocumentPayload{DocumentID: documentID})
	if err != nil {
		slog.Warn("get_document request failed", "error", err)
		return GetDocumentResponse{}
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("get_document returned non-200", "status", resp.StatusCode)
		return GetDocumentResponse{}
	}

	var out GetDocumentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode get_document response", "body", string(body), "error", err)
		return GetDocumentResponse{}
	}
	return out
}

// LoadData uploads documents. The backend does not deduplicate by filename;
// callers are responsible for deleting an existing document with the same
// name first.
func (c *Client) LoadData(ctx context.Context, payload LoadPayload) LoadResponse {
	slog.Info("loading data",
		"files", len(payload.FileNames),
		"chunk_size", payload.ChunkUnits,
		"chunker", payload.Chunker,
		"chunk_overlap", payload.ChunkOverlap,
		"embedder", payload.Embedder,
	)

	resp, err := c.request(ctx, http.MethodPost, routeLoadData, payload)
	if err != nil {
		slog.Error("load_data request failed", "error", err)
		return LoadResponse{Status: 0, StatusMsg: err.Error()}
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Error("load_data returned non-200", "status", resp.StatusCode, "body", string(body))
		return LoadResponse{Status: resp.StatusCode, StatusMsg: string(body)}
	}

	var out LoadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode load_data response", "body", string(body), "error", err)
		return LoadResponse{Status: resp.StatusCode, StatusMsg: string(body)}
	}
	return out
}

// DeleteDocument removes one document by id and reports success.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) bool {
	resp, err := c.request(ctx, http.MethodPost, routeDeleteDocument, GetDocumentPayload{DocumentID: documentID})
	if err != nil {
		slog.Warn("delete_document request failed", "error", err)
		return false
	}
	readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("delete_document returned non-200", "status", resp.StatusCode)
		return false
	}
	return true
}

// ResetCache invalidates the backend's semantic answer cache.
func (c *Client) ResetCache(ctx context.Context) bool {
	resp, err := c.request(ctx, http.MethodGet, routeResetCache, nil)
	if err != nil {
		slog.Warn("reset_cache request failed", "error", err)
		return false
	}
	readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Warn("reset_cache returned non-200", "status", resp.StatusCode)
		return false
	}
	return true
}

// SetOpenAIKey uploads the OpenAI API key, overwriting any previous one. The
// key is held server-side only; it is never logged or retained here.
func (c *Client) SetOpenAIKey(ctx context.Context, key string) APIKeyResponse {
	resp, err := c.request(ctx, http.MethodPost, routeSetOpenAIKey, APIKeyPayload{Key: key})
	if err != nil {
		slog.Error("set_openai_key request failed", "error", err)
		return APIKeyResponse{Status: "0", StatusMsg: err.Error()}
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		slog.Error("set_openai_key returned non-200", "status", resp.StatusCode, "body", string(body))
		return APIKeyResponse{Status: strconv.Itoa(resp.StatusCode), StatusMsg: string(body)}
	}

	var out APIKeyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode set_openai_key response", "body", string(body), "error", err)
		return APIKeyResponse{Status: strconv.Itoa(resp.StatusCode), StatusMsg: string(body)}
	}
	return out
}

// UnsetOpenAIKey removes the stored key and reports success.
func (c *Client) UnsetOpenAIKey(ctx context.Context) bool {
	resp, err := c.request(ctx, http.MethodPost, routeUnsetOpenAIKey, nil)
	if err != nil {
		slog.Warn("unset_openai_key request failed", "error", err)
		return false
	}
	body := readBody(resp)

	var out APIKeyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode unset_openai_key response", "body", string(body), "error", err)
		return false
	}
	return out.Status == "200"
}

// GetOpenAIKeyPreview returns the masked preview of the stored key, or the
// empty string when no key is set or the call fails.
func (c *Client) GetOpenAIKeyPreview(ctx context.Context) string {
	resp, err := c.request(ctx, http.MethodGet, routeGetOpenAIKeyPreview, nil)
	if err != nil {
		slog.Warn("get_openai_key_preview request failed", "error", err)
		return ""
	}
	body := readBody(resp)

	var out APIKeyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode get_openai_key_preview response", "body", string(body), "error", err)
		return ""
	}
	if out.Status != "200" {
		return ""
	}
	return out.StatusMsg
}

// TestOpenAIKey asks the backend to verify the stored key against the OpenAI
// API and returns the backend's verdict.
func (c *Client) TestOpenAIKey(ctx context.Context) APIKeyResponse {
	resp, err := c.request(ctx, http.MethodGet, routeTestOpenAIKey, nil)
	if err != nil {
		slog.Warn("test_openai_api_key request failed", "error", err)
		return APIKeyResponse{Status: "0", StatusMsg: err.Error()}
	}
	body := readBody(resp)

	var out APIKeyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("could not decode test_openai_api_key response", "body", string(body), "error", err)
		return APIKeyResponse{Status: strconv.Itoa(resp.StatusCode), StatusMsg: string(body)}
	}
	return out
}
