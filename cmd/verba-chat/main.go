package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bdelforge/verba-chat/internal/config"
	"github.com/bdelforge/verba-chat/internal/verba"
)

var version = "dev"

var (
	noColor   bool
	assumeYes bool
)

// welcomeMessage greets new chat sessions. It is displayed only and never
// included in the conversation history sent to the backend.
const welcomeMessage = "Greetings! I am your chatbot assistant, here to help. " +
	"If the answers to your questions are in the documents you've uploaded, I can provide them. " +
	"While you're free to ask in any language, for the best results, I recommend using the language of the uploaded documents."

var rootCmd = &cobra.Command{
	Use:          "verba-chat",
	Short:        "Chat and document administration front-end for a Verba RAG backend",
	Version:      version,
	SilenceUsage: true,
}

// newClient builds the transport client from config. A var so command tests
// can point it at a fake backend.
var newClient = func(cfg config.Config) *verba.Client {
	return verba.New(cfg.Backend.BaseURL, cfg.Backend.Port)
}

func setupLogging(cfg config.Config) {
	level := slog.LevelInfo
	if strings.EqualFold(cfg.App.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	// .env values behave like environment defaults; real env wins.
	godotenv.Load()
	setupLogging(config.Load())

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.AddCommand(chatCmd, askCmd, docsCmd, keyCmd, titleCmd, cacheCmd, statusCmd, serveCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
