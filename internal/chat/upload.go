package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/bdelforge/verba-chat/internal/verba"
)

// UploadFile is one document ready for upload.
type UploadFile struct {
	Name string
	Data []byte
}

// ReadFiles loads local files for upload, concurrently with bounded fan-out.
// PDF files are converted to plain text here because the backend's
// SimpleReader only accepts text.
func ReadFiles(ctx context.Context, paths []string) ([]UploadFile, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	files := make([]UploadFile, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if strings.EqualFold(filepath.Ext(path), ".pdf") {
				text, err := extractPDFText(data)
				if err != nil {
					return fmt.Errorf("extracting text from %s: %w", path, err)
				}
				data = []byte(text)
			}
			files[i] = UploadFile{Name: filepath.Base(path), Data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// UploadResult reports an upload and the filenames that were overwritten.
type UploadResult struct {
	Response verba.LoadResponse
	// Replaced lists filenames that already existed and were deleted before
	// the upload.
	Replaced []string
}

// UploadDocuments uploads files as documents of the given type. The backend
// does not deduplicate filenames, so any existing document with a colliding
// name is deleted first: one delete per collision, before the single
// load_data call.
func (a *Assistant) UploadDocuments(ctx context.Context, files []UploadFile, documentType, chunker string) UploadResult {
	existing := a.client.GetAllDocuments(ctx, "", "").Documents

	payload := verba.NewLoadPayload(documentType)
	if chunker != "" {
		payload.Chunker = chunker
	}
	if a.chunkSize > 0 {
		payload.ChunkUnits = a.chunkSize
	}

	var replaced []string
	for _, f := range files {
		if id := DocIDFromFilename(f.Name, existing); id != "" {
			slog.Info("document already exists, overwriting", "name", f.Name, "id", id)
			if a.client.DeleteDocument(ctx, id) {
				replaced = append(replaced, f.Name)
			}
		}
		payload.FileBytes = append(payload.FileBytes, base64.StdEncoding.EncodeToString(f.Data))
		payload.FileNames = append(payload.FileNames, f.Name)
	}

	return UploadResult{
		Response: a.client.LoadData(ctx, payload),
		Replaced: replaced,
	}
}

// DeleteAllDocuments removes every uploaded document in alphabetical
// filename order and returns the names that were deleted and those that
// failed.
func (a *Assistant) DeleteAllDocuments(ctx context.Context) (deleted, failed []string) {
	listing := a.client.GetAllDocuments(ctx, "", "").Documents
	for _, name := range OrderedFilenames(listing) {
		id := DocIDFromFilename(name, listing)
		if id != "" && a.client.DeleteDocument(ctx, id) {
			deleted = append(deleted, name)
		} else {
			failed = append(failed, name)
		}
	}
	return deleted, failed
}
