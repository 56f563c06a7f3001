package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
)

// SoftwareEndpoint receives both chunked uploads and URL imports.
const SoftwareEndpoint = "/ui/bff/software"

// ChunkRequest is one window of a chunked upload.
type ChunkRequest struct {
	Index    int
	FileName string
	Data     []byte
	Init     bool
	Done     bool
}

// UploadChunk posts one chunk as multipart form data.
func (c *Client) UploadChunk(ctx context.Context, chunk ChunkRequest) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("chunk", chunk.FileName)
	if err != nil {
		return fmt.Errorf("create chunk part: %w", err)
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return fmt.Errorf("write chunk part: %w", err)
	}
	fields := map[string]string{
		"filename": chunk.FileName,
		"init":     strconv.FormatBool(chunk.Init),
		"done":     strconv.FormatBool(chunk.Done),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write %s field: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, SoftwareEndpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// ImportURL registers a remotely hosted artifact.
func (c *Client) ImportURL(ctx context.Context, rawURL string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("url", rawURL); err != nil {
		return fmt.Errorf("write url field: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, SoftwareEndpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("import url: %w", err)
	}
	return nil
}
