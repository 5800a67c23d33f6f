package gdrive

import (
	"log/slog"
	"strconv"
	"time"
)

// Entry is a normalized Drive file or folder listing entry. Immutable once
// returned; callers never see raw API data.
type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size,omitempty"`
	CreatedAt  time.Time `json:"createdTime"`
	ModifiedAt time.Time `json:"modifiedTime"`

	// TargetID is the resolved file ID when the entry is a shortcut.
	TargetID string `json:"targetId,omitempty"`
}

// MIME type Drive uses for shortcut entries.
const shortcutMimeType = "application/vnd.google-apps.shortcut"

// driveFileResource mirrors the Drive API file resource JSON exactly.
// Unexported — callers use Entry via toEntry() normalization.
type driveFileResource struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	MimeType        string           `json:"mimeType"`
	Size            string           `json:"size"` // the API serializes int64 as a string
	CreatedTime     string           `json:"createdTime"`
	ModifiedTime    string           `json:"modifiedTime"`
	ShortcutDetails *shortcutDetails `json:"shortcutDetails"`
}

type shortcutDetails struct {
	TargetID       string `json:"targetId"`
	TargetMimeType string `json:"targetMimeType"`
}

type fileListResponse struct {
	Files         []driveFileResource `json:"files"`
	NextPageToken string              `json:"nextPageToken"`
}

type createFileResponse struct {
	ID string `json:"id"`
}

// toEntry normalizes a Drive API file resource into an Entry.
func (d *driveFileResource) toEntry(logger *slog.Logger) Entry {
	e := Entry{
		ID:       d.ID,
		Name:     d.Name,
		MimeType: d.MimeType,
	}

	if d.Size != "" {
		size, err := strconv.ParseInt(d.Size, 10, 64)
		if err != nil {
			logger.Warn("unparseable file size",
				slog.String("file_id", d.ID),
				slog.String("raw", d.Size),
			)
		} else {
			e.Size = size
		}
	}

	if d.ShortcutDetails != nil {
		e.TargetID = d.ShortcutDetails.TargetID
	}

	e.CreatedAt = parseTimestamp(d.CreatedTime, "createdTime", d.ID, logger)
	e.ModifiedAt = parseTimestamp(d.ModifiedTime, "modifiedTime", d.ID, logger)

	return e
}

// parseTimestamp parses an RFC3339 timestamp, falling back to the zero time
// with a warning on malformed input. Entries are returned to the caller
// either way — a bad timestamp is not worth failing a listing over.
func parseTimestamp(raw, field, fileID string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid timestamp",
			slog.String("field", field),
			slog.String("file_id", fileID),
			slog.String("raw", raw),
		)

		return time.Time{}
	}

	return t
}
