// Package textenc classifies downloaded resources as text or binary and
// normalizes text payloads to UTF-8, detecting the source encoding from
// byte-order marks or byte-level validity.
package textenc

import (
	"mime"
	"path/filepath"
	"strings"
)

// textExtensions are filename extensions treated as text regardless of the
// declared media type.
var textExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".tsv":  true,
	".log":  true,
	".json": true,
	".xml":  true,
	".md":   true,
	".yaml": true,
	".yml":  true,
	".ini":  true,
}

// delimitedExtensions are delimited-values formats that downstream
// spreadsheet tools open directly.
var delimitedExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
}

// textMediaTypes are non-"text/" media types that still carry text.
var textMediaTypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/x-ndjson":   true,
	"application/csv":        true,
}

// IsText reports whether a resource should go through encoding detection.
// Either signal is sufficient: a text filename extension, or a textual or
// structured-data media type. Everything else passes through as opaque
// binary.
func IsText(name, contentType string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}

	mt := mediaType(contentType)

	return strings.HasPrefix(mt, "text/") || textMediaTypes[mt]
}

// IsDelimited reports whether a resource is delimited-values text (CSV-like),
// which gets a BOM reinserted for spreadsheet tools when configured.
func IsDelimited(name, contentType string) bool {
	if delimitedExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}

	mt := mediaType(contentType)

	return mt == "text/csv" || mt == "text/tab-separated-values" || mt == "application/csv"
}

// mediaType extracts the bare media type from a Content-Type header value.
// Malformed values fall back to a trimmed lowercase prefix before any ";".
func mediaType(contentType string) string {
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
