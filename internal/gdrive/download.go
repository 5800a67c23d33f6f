package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Content is the raw byte payload of a downloaded file plus the content
// type the upstream declared for it.
type Content struct {
	Data        []byte
	ContentType string
}

// GetContent downloads a file's bytes via files.get with alt=media.
func (c *Client) GetContent(ctx context.Context, fileID string) (*Content, error) {
	c.logger.Info("downloading file", slog.String("file_id", fileID))

	reqURL := c.baseURL + "/files/" + url.PathEscape(fileID) + "?alt=media"

	resp, err := c.do(ctx, c.downloadPolicy, "download", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, err
	}

	if !resp.success() {
		return nil, c.errorFromResponse("download", resp)
	}

	c.logger.Info("download complete",
		slog.String("file_id", fileID),
		slog.Int("size", len(resp.Body)),
	)

	return &Content{
		Data:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// GetMetadata fetches a single file's listing entry. Used by the download
// path when the caller did not supply a file name for the encoding and
// caching heuristics.
func (c *Client) GetMetadata(ctx context.Context, fileID string) (*Entry, error) {
	q := url.Values{}
	q.Set("fields", "id,name,mimeType,size,createdTime,modifiedTime,shortcutDetails")

	reqURL := c.baseURL + "/files/" + url.PathEscape(fileID) + "?" + q.Encode()

	resp, err := c.do(ctx, c.listPolicy, "metadata", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, err
	}

	if !resp.success() {
		return nil, c.errorFromResponse("metadata", resp)
	}

	var parsed driveFileResource
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("gdrive: decoding metadata response: %w", err)
	}

	entry := parsed.toEntry(c.logger)

	return &entry, nil
}
