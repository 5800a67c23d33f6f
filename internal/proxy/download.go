package proxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/karhula/driveproxy/internal/textenc"
)

// Cache-Control max-ages for downloads. A file whose name embeds today's
// date is assumed to still be receiving updates, so it gets the short
// lifetime; historical files are effectively immutable.
const (
	downloadCurrentMaxAge = 60
	downloadStableMaxAge  = 3600
)

func (rt *Router) handleDownload(
	ctx context.Context, fileID, name string, forceAttachment bool, headers map[string]string,
) Envelope {
	content, err := rt.storage.GetContent(ctx, fileID)
	if err != nil {
		return rt.upstreamEnvelope("download", err, headers)
	}

	declaredType := content.ContentType

	// No name hint from the caller — fetch metadata for the encoding and
	// caching heuristics. The content is already in hand, so a metadata
	// failure downgrades the heuristics instead of failing the download.
	if name == "" {
		meta, metaErr := rt.storage.GetMetadata(ctx, fileID)
		if metaErr != nil {
			rt.logger.Warn("metadata fetch failed, serving without name heuristics",
				slog.String("file_id", fileID),
				slog.String("error", metaErr.Error()),
			)
		} else {
			name = meta.Name

			if declaredType == "" {
				declaredType = meta.MimeType
			}
		}
	}

	maxAge := downloadStableMaxAge
	if nameEmbedsDate(name, rt.now()) {
		maxAge = downloadCurrentMaxAge
	}

	headers["Cache-Control"] = cacheControl(maxAge)

	if forceAttachment && name != "" {
		headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", name)
	}

	if !textenc.IsText(name, declaredType) {
		headers["Content-Type"] = binaryContentType(declaredType)

		return Envelope{
			Status:   http.StatusOK,
			Headers:  headers,
			Body:     base64.StdEncoding.EncodeToString(content.Data),
			IsBase64: true,
		}
	}

	decoded := textenc.Decode(content.Data)

	rt.logger.Debug("decoded text download",
		slog.String("file_id", fileID),
		slog.String("encoding", decoded.Encoding),
	)

	text := decoded.Text
	if rt.csvBOM && textenc.IsDelimited(name, declaredType) {
		text = textenc.EnsureBOM(text)
	}

	headers["Content-Type"] = textContentType(name, declaredType)

	return Envelope{
		Status:  http.StatusOK,
		Headers: headers,
		Body:    text,
	}
}

// nameEmbedsDate reports whether the file name contains today's date in
// YYYY-MM-DD or YYYYMMDD form.
func nameEmbedsDate(name string, now time.Time) bool {
	if name == "" {
		return false
	}

	return strings.Contains(name, now.Format("2006-01-02")) ||
		strings.Contains(name, now.Format("20060102"))
}

// textContentType builds the response content type for decoded text:
// the declared media type (or a CSV/plain fallback) with charset=utf-8,
// since the body has been normalized regardless of the source encoding.
func textContentType(name, declaredType string) string {
	mt := bareMediaType(declaredType)
	if mt == "" || mt == "application/octet-stream" {
		if textenc.IsDelimited(name, "") {
			mt = "text/csv"
		} else {
			mt = "text/plain"
		}
	}

	return mt + "; charset=utf-8"
}

// binaryContentType passes the declared type through, defaulting to
// octet-stream when upstream declared nothing.
func binaryContentType(declaredType string) string {
	if declaredType == "" {
		return "application/octet-stream"
	}

	return declaredType
}

// bareMediaType strips parameters from a Content-Type header value.
func bareMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}

	return mt
}
