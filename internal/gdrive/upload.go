package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

const defaultUploadMimeType = "application/octet-stream"

// uploadMetadata is the JSON metadata part of a multipart upload.
type uploadMetadata struct {
	Name     string   `json:"name"`
	Parents  []string `json:"parents"`
	MimeType string   `json:"mimeType,omitempty"`
}

// Create uploads a new file under parentID using a single multipart/related
// request (JSON metadata part + content part) and returns the created
// file's ID.
func (c *Client) Create(ctx context.Context, parentID, name, mimeType string, content []byte) (string, error) {
	if mimeType == "" {
		mimeType = defaultUploadMimeType
	}

	c.logger.Info("uploading file",
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.String("mime_type", mimeType),
		slog.Int("size", len(content)),
	)

	body, contentType, err := buildMultipartBody(parentID, name, mimeType, content)
	if err != nil {
		return "", err
	}

	reqURL := c.uploadURL + "/files?uploadType=multipart"

	resp, err := c.do(ctx, c.uploadPolicy, "upload", func(ctx context.Context) (*http.Request, error) {
		// Fresh reader per attempt — the previous attempt may have
		// consumed part of the body.
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Content-Type", contentType)

		return req, nil
	})
	if err != nil {
		return "", err
	}

	if !resp.success() {
		return "", c.errorFromResponse("upload", resp)
	}

	var parsed createFileResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("gdrive: decoding upload response: %w", err)
	}

	if parsed.ID == "" {
		return "", fmt.Errorf("gdrive: upload response missing file ID")
	}

	c.logger.Info("upload complete",
		slog.String("file_id", parsed.ID),
		slog.String("name", name),
	)

	return parsed.ID, nil
}

// buildMultipartBody assembles the two-part multipart/related upload body
// and returns it with the Content-Type header value carrying the boundary.
func buildMultipartBody(parentID, name, mimeType string, content []byte) ([]byte, string, error) {
	meta, err := json.Marshal(uploadMetadata{
		Name:     name,
		Parents:  []string{parentID},
		MimeType: mimeType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("gdrive: marshaling upload metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("gdrive: creating metadata part: %w", err)
	}

	if _, err := metaPart.Write(meta); err != nil {
		return nil, "", fmt.Errorf("gdrive: writing metadata part: %w", err)
	}

	contentPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {mimeType},
	})
	if err != nil {
		return nil, "", fmt.Errorf("gdrive: creating content part: %w", err)
	}

	if _, err := contentPart.Write(content); err != nil {
		return nil, "", fmt.Errorf("gdrive: writing content part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("gdrive: finalizing multipart body: %w", err)
	}

	return buf.Bytes(), "multipart/related; boundary=" + w.Boundary(), nil
}
