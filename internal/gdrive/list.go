package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// listPageSize is the pageSize value for files.list requests.
const listPageSize = 200

// listFields restricts the response to the fields Entry needs.
const listFields = "nextPageToken,files(id,name,mimeType,size,createdTime,modifiedTime,shortcutDetails)"

// defaultMaxListPages is the hard ceiling on pagination regardless of
// what page tokens the API keeps handing back. Bounds worst-case latency
// even if the upstream misbehaves. Overridable via Tune.
const defaultMaxListPages = 20

// List returns every non-trashed child of the given folder, following page
// tokens up to the client's page ceiling. The result is always complete
// pages in upstream order — a partial page is never returned.
func (c *Client) List(ctx context.Context, folderID string) ([]Entry, error) {
	c.logger.Info("listing folder", slog.String("folder_id", folderID))

	pol := c.listPolicy

	var (
		entries   []Entry
		pageToken string
	)

	for page := 0; page < c.maxListPages; page++ {
		reqURL := c.listURL(folderID, pageToken)

		resp, err := c.do(ctx, pol, "list", func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		})
		if err != nil {
			return nil, err
		}

		if !resp.success() {
			return nil, c.errorFromResponse("list", resp)
		}

		var parsed fileListResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("gdrive: decoding list response: %w", err)
		}

		for i := range parsed.Files {
			entries = append(entries, parsed.Files[i].toEntry(c.logger))
		}

		if parsed.NextPageToken == "" {
			c.logger.Info("listing complete",
				slog.String("folder_id", folderID),
				slog.Int("pages", page+1),
				slog.Int("total_entries", len(entries)),
			)

			return entries, nil
		}

		pageToken = parsed.NextPageToken
	}

	c.logger.Warn("page ceiling reached, returning accumulated entries",
		slog.String("folder_id", folderID),
		slog.Int("pages", c.maxListPages),
		slog.Int("total_entries", len(entries)),
	)

	return entries, nil
}

// queryTermEscaper escapes a value for a single-quoted term in a Drive
// query expression. Both replacements happen in one pass, so the escaping
// backslashes are not themselves re-escaped.
var queryTermEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// listURL builds the files.list URL for one page of a folder's children.
// The folder ID is caller-supplied and must not be able to rewrite the
// query expression.
func (c *Client) listURL(folderID, pageToken string) string {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", queryTermEscaper.Replace(folderID)))
	q.Set("fields", listFields)
	q.Set("pageSize", fmt.Sprint(listPageSize))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	return c.baseURL + "/files?" + q.Encode()
}
