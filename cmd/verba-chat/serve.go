package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bdelforge/verba-chat/internal/chat"
	"github.com/bdelforge/verba-chat/internal/config"
	"github.com/bdelforge/verba-chat/internal/mcpserver"
	"github.com/bdelforge/verba-chat/internal/titlestore"
	"github.com/bdelforge/verba-chat/internal/verba"
	"github.com/bdelforge/verba-chat/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser chat front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		cfg := config.Load()
		if port == 0 {
			port = cfg.App.Port
		}

		store, err := titlestore.Open(cfg.App.DataDir)
		if err != nil {
			return fmt.Errorf("opening title store: %w", err)
		}
		defer store.Close()

		handler := web.NewHandler(web.Deps{
			NewClient: func() *verba.Client { return newClient(cfg) },
			ChunkSize: cfg.Upload.ChunkSize,
			Titles:    store,
			Tenant:    cfg.App.Tenant,
			Sessions:  web.NewSessionRegistry(welcomeMessage),
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(cmd.Context(), srv)
	},
}

func runServer(ctx context.Context, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting front-end", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("front-end server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down front-end")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server over stdio exposing the chatbot tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := newClient(cfg)
		defer client.Close()

		mcpSrv := mcpserver.NewServer(mcpserver.Deps{
			Assistant: chat.New(client, cfg.Upload.ChunkSize),
			Documents: client,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("starting MCP server on stdio")
		if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (defaults to VERBA_CHAT_PORT)")
}
