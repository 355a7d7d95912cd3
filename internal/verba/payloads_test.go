package verba

import (
	"encoding/json"
	"testing"
)

func TestGenerateResult_UnmarshalString(t *testing.T) {
	var out GenerateResponse
	if err := json.Unmarshal([]byte(`{"system":"plain answer"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.System.Cached != nil {
		t.Error("Cached != nil for a string system")
	}
	if out.System.Answer() != "plain answer" {
		t.Errorf("Answer() = %q, want %q", out.System.Answer(), "plain answer")
	}
}

func TestGenerateResult_UnmarshalCached(t *testing.T) {
	var out GenerateResponse
	raw := `{"system":{"message":"from cache","finish_reason":"stop","cached":true,"distance":0.05}}`
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.System.Cached == nil {
		t.Fatal("Cached = nil for an object system")
	}
	if out.System.Cached.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", out.System.Cached.FinishReason)
	}
	if out.System.Answer() != "from cache" {
		t.Errorf("Answer() = %q, want %q", out.System.Answer(), "from cache")
	}
}

func TestGenerateResult_UnmarshalInvalid(t *testing.T) {
	var r GenerateResult
	if err := json.Unmarshal([]byte(`[1,2,3]`), &r); err == nil {
		t.Error("expected error for a system that is neither string nor object")
	}
}

func TestGenerateResult_MarshalBothVariants(t *testing.T) {
	b, err := json.Marshal(GenerateResult{Text: "hi"})
	if err != nil {
		t.Fatalf("marshal text: %v", err)
	}
	if string(b) != `"hi"` {
		t.Errorf("text variant marshals to %s, want a JSON string", b)
	}

	b, err = json.Marshal(GenerateResult{Cached: &CachedResponse{Message: "hi", FinishReason: "stop"}})
	if err != nil {
		t.Fatalf("marshal cached: %v", err)
	}
	var round CachedResponse
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("cached variant did not marshal to an object: %v", err)
	}
	if round.Message != "hi" {
		t.Errorf("round-tripped message = %q, want hi", round.Message)
	}
}

func TestDocument_IsEmpty(t *testing.T) {
	if !(Document{}).IsEmpty() {
		t.Error("zero document should be empty")
	}
	if (Document{ID: "id-1"}).IsEmpty() {
		t.Error("document with an id should not be empty")
	}
	if (Document{Properties: DocumentProperties{DocName: "a.txt"}}).IsEmpty() {
		t.Error("document with a name should not be empty")
	}
}

func TestNewLoadPayload_Defaults(t *testing.T) {
	p := NewLoadPayload("Documentation")
	if p.Reader != ReaderSimple || p.Chunker != ChunkerToken || p.Embedder != EmbedderADA {
		t.Errorf("components = %q/%q/%q, want SimpleReader/TokenChunker/ADAEmbedder", p.Reader, p.Chunker, p.Embedder)
	}
	if p.ChunkUnits != 100 || p.ChunkOverlap != 50 {
		t.Errorf("chunking = %d/%d, want 100/50", p.ChunkUnits, p.ChunkOverlap)
	}
	if p.DocumentType != "Documentation" {
		t.Errorf("DocumentType = %q, want Documentation", p.DocumentType)
	}
}
