package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdelforge/verba-chat/internal/chat"
	"github.com/bdelforge/verba-chat/internal/config"
	"github.com/bdelforge/verba-chat/internal/session"
	"github.com/bdelforge/verba-chat/internal/titlestore"
	"github.com/bdelforge/verba-chat/internal/verba"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question, without conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minWords, _ := cmd.Flags().GetInt("min-words")
		maxWords, _ := cmd.Flags().GetInt("max-words")
		showSources, _ := cmd.Flags().GetBool("sources")

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()
		assistant := chat.New(client, cfg.Upload.ChunkSize)

		answer := assistant.GenerateAnswer(cmd.Context(), args[0],
			chat.AnswerOptions{MinWords: minWords, MaxWords: maxWords}, nil)

		printAnswer(answer.Text)
		if showSources {
			for _, d := range answer.Documents {
				printStatus(d.DocName, "chunk %d, score %.2f", d.ChunkID, d.Score)
			}
		}
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with streamed answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		noStream, _ := cmd.Flags().GetBool("no-stream")
		minWords, _ := cmd.Flags().GetInt("min-words")
		maxWords, _ := cmd.Flags().GetInt("max-words")

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()
		assistant := chat.New(client, cfg.Upload.ChunkSize)

		if status := client.CheckConnection(cmd.Context()); !status.OK {
			if status.KeyMissing {
				printError("your OpenAI key is not set yet, set it with: verba-chat key set <key>")
			} else {
				printError("%s", status.Detail)
			}
			printWarning("start the backend and try again")
			return errors.New("backend unavailable")
		}

		title := chatbotTitle(cfg)
		fmt.Fprintf(os.Stderr, "🤖 %s (:reset clears the conversation, :sources shows retrieved chunks, :quit exits)\n\n", title)

		sess := session.New()
		sess.AppendTransient(session.RoleSystem, welcomeMessage)
		fmt.Fprintln(os.Stderr, colorize(colorCyan, welcomeMessage))

		opts := chat.AnswerOptions{MinWords: minWords, MaxWords: maxWords}
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stderr, "\n> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			prompt := strings.TrimSpace(scanner.Text())

			switch prompt {
			case "":
				continue
			case ":quit", ":q":
				return nil
			case ":reset":
				sess.Reset()
				sess.AppendTransient(session.RoleSystem, welcomeMessage)
				printSuccess("conversation reset")
				continue
			case ":sources":
				showLatestSources(sess)
				continue
			}

			sess.AppendTurn(session.RoleUser, prompt, true)
			conversation := sess.ConversationPayload()

			elaborated, retrieved := assistant.SearchDocuments(cmd.Context(), prompt, opts)

			var full string
			switch {
			case retrieved.System != nil:
				full = *retrieved.System
				printAnswer(full)
			case noStream:
				generated := client.Generate(cmd.Context(), elaborated, retrieved.Context, conversation)
				full = generated.System.Answer()
				printAnswer(full)
			default:
				full = streamAnswer(cmd, client, elaborated, retrieved.Context, conversation)
			}

			sess.RecordRetrieval(prompt, retrieved.Documents)
			sess.AppendTurn(session.RoleSystem, full, false)
		}
	},
}

// streamAnswer prints fragments as they arrive and returns the accumulated
// answer. A broken stream keeps whatever was already received.
func streamAnswer(cmd *cobra.Command, client *verba.Client, elaborated, docContext string, conversation []verba.ConversationItem) string {
	stream, err := client.GenerateStream(cmd.Context(), elaborated, docContext, conversation)
	if err != nil {
		msg := "Something went wrong when generating your answer, details: " + err.Error()
		printAnswer(msg)
		return msg
	}
	defer stream.Close()

	var full strings.Builder
	for {
		fragment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			printWarning("answer stream interrupted: %v", err)
			break
		}
		full.WriteString(fragment)
		fmt.Fprint(os.Stdout, colorize(colorCyan, fragment))
	}
	fmt.Fprintln(os.Stdout)
	return full.String()
}

func showLatestSources(sess *session.Session) {
	prompts := sess.PromptHistory()
	if len(prompts) == 0 {
		printWarning("no retrievals recorded yet")
		return
	}
	fmt.Fprintf(os.Stderr, "sources for %q:\n", prompts[0])
	for _, c := range sess.ChunksForPrompt(prompts[0]) {
		printStatus(c.DocName, "chunk %d, score %.2f", c.ChunkID, c.Score)
	}
}

func chatbotTitle(cfg config.Config) string {
	store, err := titlestore.Open(cfg.App.DataDir)
	if err != nil {
		// A title must never prevent chatting.
		return titlestore.DefaultTitle
	}
	defer store.Close()
	title, err := store.Get(cfg.App.Tenant)
	if err != nil {
		return titlestore.DefaultTitle
	}
	return title
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect and administer uploaded documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		docType, _ := cmd.Flags().GetString("type")

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		listing := client.GetAllDocuments(cmd.Context(), query, docType)
		if len(listing.Documents) == 0 {
			fmt.Fprintln(os.Stdout, "No document found")
			return nil
		}

		for _, name := range chat.OrderedFilenames(listing.Documents) {
			id := chat.DocIDFromFilename(name, listing.Documents)
			fmt.Fprintf(os.Stdout, "%s\t%s\n", id, name)
		}
		printStatus("Total", "%d", len(listing.Documents))
		printStatus("Types", "%s", strings.Join(listing.DocTypes, ", "))
		printStatus("Embedder", "%s", listing.CurrentEmbedder)
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <filename>",
	Short: "Show one document's metadata and text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		id := resolveDocumentID(cmd, client, args[0])
		if id == "" {
			return fmt.Errorf("document %q not found", args[0])
		}

		doc := client.GetDocument(cmd.Context(), id).Document
		if doc.IsEmpty() {
			return fmt.Errorf("could not fetch document %q", args[0])
		}

		printStatus("Name", "%s", doc.Properties.DocName)
		printStatus("Type", "%s", doc.Properties.DocType)
		printStatus("Uploaded", "%s", doc.Properties.Timestamp)
		printStatus("Chunks", "%d", doc.Properties.ChunkCount)
		printStatus("Id", "%s", doc.ID)
		fmt.Fprintln(os.Stdout, doc.Properties.Text)
		return nil
	},
}

var docsUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents (txt, md or pdf)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, _ := cmd.Flags().GetString("type")
		chunker, _ := cmd.Flags().GetString("chunker")

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()
		assistant := chat.New(client, cfg.Upload.ChunkSize)

		files, err := chat.ReadFiles(cmd.Context(), args)
		if err != nil {
			return err
		}

		result := assistant.UploadDocuments(cmd.Context(), files, docType, chunker)
		for _, name := range result.Replaced {
			printWarning("%s was already in the database and has been overwritten", name)
		}
		if result.Response.Status != 200 {
			printError("upload failed with status %d: %s", result.Response.Status, result.Response.StatusMsg)
			printWarning("a 429 means the API is overloaded, try again later; on encoding errors try uploading files one by one")
			return errors.New("upload failed")
		}
		printSuccess("documents successfully uploaded")
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete one document (irreversible)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		id := resolveDocumentID(cmd, client, args[0])
		if id == "" {
			return fmt.Errorf("document %q not found", args[0])
		}
		if !confirm(fmt.Sprintf("Delete %s? This cannot be undone.", args[0])) {
			printWarning("aborted")
			return nil
		}
		if !client.DeleteDocument(cmd.Context(), id) {
			return fmt.Errorf("something went wrong when trying to delete %s", args[0])
		}
		printSuccess("%s successfully deleted", args[0])
		return nil
	},
}

var docsDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every uploaded document (irreversible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()
		assistant := chat.New(client, cfg.Upload.ChunkSize)

		total := len(client.GetAllDocuments(cmd.Context(), "", "").Documents)
		if total == 0 {
			fmt.Fprintln(os.Stdout, "No document uploaded yet")
			return nil
		}
		if !confirm(fmt.Sprintf("Delete all documents (total: %d)? This cannot be undone.", total)) {
			printWarning("aborted")
			return nil
		}

		deleted, failed := assistant.DeleteAllDocuments(cmd.Context())
		for _, name := range deleted {
			printSuccess("%s successfully deleted", name)
		}
		for _, name := range failed {
			printError("something went wrong when trying to delete %s", name)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d documents could not be deleted", len(failed))
		}
		return nil
	},
}

// resolveDocumentID accepts a filename or a raw document id.
func resolveDocumentID(cmd *cobra.Command, client *verba.Client, nameOrID string) string {
	listing := client.GetAllDocuments(cmd.Context(), "", "")
	if id := chat.DocIDFromFilename(nameOrID, listing.Documents); id != "" {
		return id
	}
	for _, d := range listing.Documents {
		if d.Additional.ID == nameOrID {
			return nameOrID
		}
	}
	return ""
}

// --- key ---

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the backend's OpenAI API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Upload a new API key (overwrites the previous one)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		res := client.SetOpenAIKey(cmd.Context(), args[0])
		if res.Status != "200" {
			return fmt.Errorf("key upload failed: %s", res.StatusMsg)
		}
		printSuccess("API key successfully pushed")

		verdict := client.TestOpenAIKey(cmd.Context())
		printStatus("Key test", "%s %s", verdict.Status, verdict.StatusMsg)
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show whether a key is set, with a masked preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		reveal, _ := cmd.Flags().GetBool("reveal")

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		preview := client.GetOpenAIKeyPreview(cmd.Context())
		if preview == "" {
			fmt.Fprintln(os.Stdout, "No OpenAI API key uploaded yet")
			return nil
		}
		if !reveal {
			preview = strings.Repeat("*", len(preview))
		}
		printStatus("Key preview", "%s", preview)
		return nil
	},
}

var keyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Ask the backend to verify the stored key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		verdict := client.TestOpenAIKey(cmd.Context())
		printStatus("Status", "%s", verdict.Status)
		printStatus("Details", "%s", verdict.StatusMsg)
		return nil
	},
}

var keyUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm("Delete the stored API key?") {
			printWarning("aborted")
			return nil
		}

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		if !client.UnsetOpenAIKey(cmd.Context()) {
			return errors.New("something went wrong when deleting your key")
		}
		printSuccess("key successfully removed")
		return nil
	},
}

// --- title ---

var titleCmd = &cobra.Command{
	Use:   "title",
	Short: "Manage the persisted chatbot title",
}

var titleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current chatbot title",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		store, err := titlestore.Open(cfg.App.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		title, err := store.Get(cfg.App.Tenant)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, title)
		return nil
	},
}

var titleSetCmd = &cobra.Command{
	Use:   "set <title>",
	Short: "Set a custom chatbot title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return errors.New("please provide a non-empty title")
		}

		cfg := config.Load()
		store, err := titlestore.Open(cfg.App.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Set(cfg.App.Tenant, args[0]); err != nil {
			return err
		}
		printSuccess("chatbot title (%q) successfully saved", args[0])
		return nil
	},
}

var titleResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the chatbot title to its default",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		store, err := titlestore.Open(cfg.App.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Reset(cfg.App.Tenant); err != nil {
			return err
		}
		printSuccess("chatbot title successfully set to default (%q)", titlestore.DefaultTitle)
		return nil
	},
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Backend cache administration",
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the backend's semantic answer cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm("Reset the backend cache?") {
			printWarning("aborted")
			return nil
		}

		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		if !client.ResetCache(cmd.Context()) {
			return errors.New("something went wrong when resetting cache")
		}
		printSuccess("cache successfully reset")
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		printStatus("Backend", "%s:%d/api", cfg.Backend.BaseURL, cfg.Backend.Port)
		printStatus("Tenant", "%s", cfg.App.Tenant)
		printStatus("Title", "%s", chatbotTitle(cfg))

		status := client.CheckConnection(cmd.Context())
		if !status.OK {
			if status.KeyMissing {
				printError("backend is up but no OpenAI key is set, run: verba-chat key set <key>")
			} else {
				printError("%s", status.Detail)
			}
			return errors.New("backend unavailable")
		}
		printSuccess("backend reachable")

		if client.GetOpenAIKeyPreview(cmd.Context()) == "" {
			printWarning("no OpenAI key uploaded yet")
		} else {
			printSuccess("OpenAI key is set")
		}

		listing := client.GetAllDocuments(cmd.Context(), "", "")
		printStatus("Documents", "%d", len(listing.Documents))
		printStatus("Embedder", "%s", listing.CurrentEmbedder)
		return nil
	},
}

func init() {
	askCmd.Flags().Int("min-words", 0, "minimum answer length in words")
	askCmd.Flags().Int("max-words", 0, "maximum answer length in words")
	askCmd.Flags().Bool("sources", false, "list the retrieved chunks after the answer")

	chatCmd.Flags().Bool("no-stream", false, "disable answer streaming")
	chatCmd.Flags().Int("min-words", 0, "minimum answer length in words")
	chatCmd.Flags().Int("max-words", 0, "maximum answer length in words")

	docsListCmd.Flags().String("query", "", "search filter")
	docsListCmd.Flags().String("type", "", "document type filter")
	docsUploadCmd.Flags().String("type", "Documentation", "document type to assign")
	docsUploadCmd.Flags().String("chunker", verba.ChunkerToken, "chunker to use (TokenChunker or WordChunker)")
	docsCmd.AddCommand(docsListCmd, docsShowCmd, docsUploadCmd, docsDeleteCmd, docsDeleteAllCmd)

	keyShowCmd.Flags().Bool("reveal", false, "show the preview instead of masking it")
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyTestCmd, keyUnsetCmd)

	titleCmd.AddCommand(titleShowCmd, titleSetCmd, titleResetCmd)
	cacheCmd.AddCommand(cacheResetCmd)
}
