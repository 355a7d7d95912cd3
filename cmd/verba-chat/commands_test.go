package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdelforge/verba-chat/internal/config"
	"github.com/bdelforge/verba-chat/internal/verba"
)

// withFakeBackend points newClient at a fake Verba API for the duration of a
// test.
func withFakeBackend(t *testing.T, responses map[string]string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if resp, ok := responses[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}
		w.WriteHeader(404)
	}))
	t.Cleanup(srv.Close)

	old := newClient
	newClient = func(config.Config) *verba.Client {
		c := verba.NewWithBaseAPIURL(srv.URL + "/api")
		c.SetRetryPolicy(verba.RetryPolicy{Attempts: 1, BaseWait: time.Millisecond, MaxWait: time.Millisecond})
		return c
	}
	t.Cleanup(func() { newClient = old })
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfirm_AssumeYes(t *testing.T) {
	old := assumeYes
	defer func() { assumeYes = old }()

	assumeYes = true
	if !confirm("destroy everything?") {
		t.Error("confirm with --yes should return true without prompting")
	}
}

func TestAskCommand(t *testing.T) {
	withFakeBackend(t, map[string]string{
		"/api/health":   `{}`,
		"/api/query":    `{"documents":[],"context":"ctx","system":null}`,
		"/api/generate": `{"system":"the answer"}`,
	})
	askCmd.SetContext(t.Context())
	if err := askCmd.RunE(askCmd, []string{"what is verba"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
}

func TestStatusCommand_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	old := newClient
	newClient = func(config.Config) *verba.Client {
		c := verba.NewWithBaseAPIURL(srv.URL + "/api")
		c.SetRetryPolicy(verba.RetryPolicy{Attempts: 1, BaseWait: time.Millisecond, MaxWait: time.Millisecond})
		return c
	}
	defer func() { newClient = old }()

	t.Setenv("VERBA_CHAT_DATA_DIR", t.TempDir())

	statusCmd.SetContext(t.Context())
	err := statusCmd.RunE(statusCmd, nil)
	if err == nil {
		t.Fatal("expected error when the backend is down")
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("error = %q, want it to mention 'unavailable'", err.Error())
	}
}

func TestDocsDeleteCommand_UnknownDocument(t *testing.T) {
	withFakeBackend(t, map[string]string{
		"/api/get_all_documents": `{"documents":[],"doc_types":[]}`,
	})

	docsDeleteCmd.SetContext(t.Context())
	err := docsDeleteCmd.RunE(docsDeleteCmd, []string{"missing.txt"})
	if err == nil {
		t.Fatal("expected error for an unknown document")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want it to mention 'not found'", err.Error())
	}
}

func TestResolveDocumentID(t *testing.T) {
	withFakeBackend(t, map[string]string{
		"/api/get_all_documents": `{"documents":[{"_additional":{"id":"id-a"},"doc_name":"a.txt"}],"doc_types":[]}`,
	})

	cfg := config.Load()
	client := newClient(cfg)
	defer client.Close()

	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())

	if got := resolveDocumentID(cmd, client, "a.txt"); got != "id-a" {
		t.Errorf("resolveDocumentID(a.txt) = %q, want id-a", got)
	}
	if got := resolveDocumentID(cmd, client, "id-a"); got != "id-a" {
		t.Errorf("resolveDocumentID(id-a) = %q, want the raw id accepted", got)
	}
	if got := resolveDocumentID(cmd, client, "missing.txt"); got != "" {
		t.Errorf("resolveDocumentID(missing.txt) = %q, want empty", got)
	}
}

func TestTitleCommandRoundTrip(t *testing.T) {
	t.Setenv("VERBA_CHAT_DATA_DIR", t.TempDir())

	if err := titleSetCmd.RunE(titleSetCmd, []string{"My Assistant"}); err != nil {
		t.Fatalf("title set: %v", err)
	}

	cfg := config.Load()
	if got := chatbotTitle(cfg); got != "My Assistant" {
		t.Errorf("chatbotTitle = %q, want My Assistant", got)
	}

	if err := titleResetCmd.RunE(titleResetCmd, nil); err != nil {
		t.Fatalf("title reset: %v", err)
	}
	if got := chatbotTitle(cfg); got == "My Assistant" {
		t.Error("title not reset to the default")
	}
}

func TestTitleSetCommand_EmptyRejected(t *testing.T) {
	t.Setenv("VERBA_CHAT_DATA_DIR", t.TempDir())

	if err := titleSetCmd.RunE(titleSetCmd, []string{"   "}); err == nil {
		t.Fatal("expected error for a blank title")
	}
}

func TestKeyShowCommand_Masked(t *testing.T) {
	withFakeBackend(t, map[string]string{
		"/api/get_openai_key_preview": `{"status":"200","status_msg":"sk-...cdef"}`,
	})

	keyShowCmd.SetContext(t.Context())
	if err := keyShowCmd.RunE(keyShowCmd, nil); err != nil {
		t.Fatalf("key show: %v", err)
	}
}

func TestCacheResetCommand(t *testing.T) {
	withFakeBackend(t, map[string]string{
		"/api/reset_cache": `{}`,
	})

	old := assumeYes
	assumeYes = true
	defer func() { assumeYes = old }()

	cacheResetCmd.SetContext(t.Context())
	if err := cacheResetCmd.RunE(cacheResetCmd, nil); err != nil {
		t.Fatalf("cache reset: %v", err)
	}
}
