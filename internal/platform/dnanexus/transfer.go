package dnanexus

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// UploadFile uploads a local file into folder and returns the new file id.
func (c *Client) UploadFile(ctx context.Context, path, folder string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	return c.UploadContent(ctx, filepath.Base(path), folder, f)
}

// UploadContent uploads arbitrary content as a new platform file. The file
// is created, written in a single part and closed; the platform finalises it
// asynchronously after close.
func (c *Client) UploadContent(ctx context.Context, name, folder string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	fileID, err := c.newFile(ctx, name, folder)
	if err != nil {
		return "", err
	}

	if err := c.uploadPart(ctx, fileID, data); err != nil {
		return "", err
	}

	if err := c.call(ctx, fileID+"/close", map[string]any{}, nil); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	c.log.DebugContext(ctx, "uploaded file",
		slog.String("name", name),
		slog.String("file_id", fileID),
		slog.Int("bytes", len(data)),
	)

	return fileID, nil
}

func (c *Client) newFile(ctx context.Context, name, folder string) (string, error) {
	input := map[string]any{
		"project": c.project,
		"folder":  folder,
		"parents": true,
		"name":    name,
	}

	var output struct {
		ID string `json:"id"`
	}

	if err := c.call(ctx, "file/new", input, &output); err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	return output.ID, nil
}

func (c *Client) uploadPart(ctx context.Context, fileID string, data []byte) error {
	input := map[string]any{
		"size":  len(data),
		"md5":   fmt.Sprintf("%x", md5.Sum(data)),
		"index": 1,
	}

	var output struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	}

	if err := c.call(ctx, fileID+"/upload", input, &output); err != nil {
		return fmt.Errorf("failed to get upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, output.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	for key, value := range output.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload part: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned %s", resp.Status)
	}

	return nil
}

// DownloadOutput fetches a platform file to destination via a
// preauthenticated URL.
func (c *Client) DownloadOutput(ctx context.Context, fileID, destination string) (err error) {
	input := map[string]any{
		"project":          c.project,
		"preauthenticated": true,
	}

	var output struct {
		URL string `json:"url"`
	}

	if err := c.call(ctx, fileID+"/download", input, &output); err != nil {
		return fmt.Errorf("failed to get download url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, output.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %s", resp.Status)
	}

	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", destination, err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %q: %w", destination, err)
	}

	return nil
}
