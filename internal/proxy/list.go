package proxy

import (
	"context"
	"net/http"

	"github.com/karhula/driveproxy/internal/gdrive"
)

// listMaxAge is the Cache-Control max-age for listing responses. Short,
// because folder contents change as users add files.
const listMaxAge = 30

// listResponse is the client-facing listing envelope body.
type listResponse struct {
	Files []gdrive.Entry `json:"files"`
}

func (rt *Router) handleList(ctx context.Context, folderID string, headers map[string]string) Envelope {
	entries, err := rt.storage.List(ctx, folderID)
	if err != nil {
		return rt.upstreamEnvelope("list", err, headers)
	}

	// An empty folder serializes as "files":[] rather than null.
	if entries == nil {
		entries = []gdrive.Entry{}
	}

	headers["Cache-Control"] = cacheControl(listMaxAge)

	return jsonEnvelope(http.StatusOK, headers, listResponse{Files: entries})
}
