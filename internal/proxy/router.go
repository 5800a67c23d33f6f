package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/karhula/driveproxy/internal/gdrive"
)

// maxPostBody caps inbound POST bodies. Uploads beyond this are rejected
// rather than buffered.
const maxPostBody = 16 << 20 // 16 MiB

// Storage is the slice of the Drive client the router consumes.
type Storage interface {
	List(ctx context.Context, folderID string) ([]gdrive.Entry, error)
	GetContent(ctx context.Context, fileID string) (*gdrive.Content, error)
	GetMetadata(ctx context.Context, fileID string) (*gdrive.Entry, error)
	Create(ctx context.Context, parentID, name, mimeType string, content []byte) (string, error)
}

// Router dispatches inbound requests by method and parameters to list,
// download, upload, or login, and assembles the outbound envelope.
type Router struct {
	storage  Storage
	sessions *SessionStore // nil disables the session-auth layer
	logger   *slog.Logger
	csvBOM   bool

	// cors holds the current origin allow-list snapshot; swapped
	// atomically on config reload.
	cors atomic.Pointer[originPolicy]

	// now is replaced in tests to pin the date-in-filename heuristic.
	now func() time.Time
}

// Options configures a Router.
type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	CSVBOM         bool
	Sessions       *SessionStore
}

// NewRouter creates a Router over the given storage backend.
func NewRouter(storage Storage, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Router{
		storage:  storage,
		sessions: opts.Sessions,
		logger:   logger,
		csvBOM:   opts.CSVBOM,
		now:      time.Now,
	}

	rt.cors.Store(newOriginPolicy(opts.AllowedOrigins))

	return rt
}

// SetAllowedOrigins swaps in a new origin allow-list. Called from the
// config watcher; safe under concurrent request handling.
func (rt *Router) SetAllowedOrigins(origins []string) {
	rt.cors.Store(newOriginPolicy(origins))
	rt.logger.Info("origin allow-list updated", slog.Int("origins", len(origins)))
}

// ServeHTTP adapts the envelope contract onto net/http.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	env := rt.Handle(r)

	if err := env.Write(w); err != nil {
		rt.logger.Warn("writing response failed", slog.String("error", err.Error()))
	}
}

// Handle runs one request through dispatch and returns the response
// envelope. Every path through here produces an envelope — no internal
// error value ever reaches the caller unconverted.
func (rt *Router) Handle(r *http.Request) Envelope {
	headers := rt.cors.Load().baseHeaders(r.Header.Get("Origin"))

	switch r.Method {
	case http.MethodOptions:
		// Preflight: acknowledge with the CORS decision, no body.
		return Envelope{Status: http.StatusNoContent, Headers: headers}
	case http.MethodGet:
		return rt.handleGet(r, headers)
	case http.MethodPost:
		return rt.handlePost(r, headers)
	default:
		return errorEnvelope(http.StatusMethodNotAllowed, headers, "method not allowed")
	}
}

func (rt *Router) handleGet(r *http.Request, headers map[string]string) Envelope {
	if !rt.authorized(r) {
		return errorEnvelope(http.StatusUnauthorized, headers, "unauthorized")
	}

	q := r.URL.Query()

	id := q.Get("id")
	if id == "" {
		return errorEnvelope(http.StatusBadRequest, headers, "missing id parameter")
	}

	if isTrue(q.Get("list")) {
		return rt.handleList(r.Context(), id, headers)
	}

	return rt.handleDownload(r.Context(), id, q.Get("name"), isTrue(q.Get("download")), headers)
}

// postRequest is the tagged union of POST body shapes, validated at the
// boundary before dispatch.
type postRequest struct {
	// Upload variant.
	Upload          bool   `json:"upload"`
	ParentID        string `json:"parentId"`
	Name            string `json:"name"`
	Content         string `json:"content"`
	ContentEncoding string `json:"contentEncoding"` // "base64" for binary payloads
	MimeType        string `json:"mimeType"`

	// Login variant.
	Action   string `json:"action"`
	Tenant   string `json:"tenant"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (rt *Router) handlePost(r *http.Request, headers map[string]string) Envelope {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPostBody+1))
	if err != nil {
		return errorEnvelope(http.StatusBadRequest, headers, "unreadable request body")
	}

	if len(body) > maxPostBody {
		return errorEnvelope(http.StatusBadRequest, headers, "request body too large")
	}

	var req postRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorEnvelope(http.StatusBadRequest, headers, "malformed JSON body")
	}

	switch {
	case req.Action == "login" && rt.sessions != nil:
		return rt.handleLogin(&req, headers)
	case req.Upload:
		if !rt.authorized(r) {
			return errorEnvelope(http.StatusUnauthorized, headers, "unauthorized")
		}

		return rt.handleUpload(r.Context(), &req, headers)
	default:
		return errorEnvelope(http.StatusBadRequest, headers, "unsupported request body")
	}
}

// authorized reports whether the request may proceed. Always true when
// the session-auth layer is disabled.
func (rt *Router) authorized(r *http.Request) bool {
	if rt.sessions == nil {
		return true
	}

	auth := r.Header.Get("Authorization")

	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}

	return rt.sessions.Validate(token)
}

func (rt *Router) handleLogin(req *postRequest, headers map[string]string) Envelope {
	if req.Tenant == "" || req.Login == "" || req.Password == "" {
		return errorEnvelope(http.StatusBadRequest, headers, "missing login fields")
	}

	token, err := rt.sessions.Login(req.Tenant, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return errorEnvelope(http.StatusUnauthorized, headers, "invalid credentials")
		}

		rt.logger.Error("login failed", slog.String("error", err.Error()))

		return errorEnvelope(http.StatusInternalServerError, headers, "internal error")
	}

	return jsonEnvelope(http.StatusOK, headers, map[string]any{
		"success": true,
		"token":   token,
	})
}

func (rt *Router) handleUpload(ctx context.Context, req *postRequest, headers map[string]string) Envelope {
	if req.ParentID == "" || req.Name == "" {
		return errorEnvelope(http.StatusBadRequest, headers, "missing parentId or name")
	}

	content := []byte(req.Content)

	if req.ContentEncoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return errorEnvelope(http.StatusBadRequest, headers, "content is not valid base64")
		}

		content = decoded
	}

	id, err := rt.storage.Create(ctx, req.ParentID, req.Name, req.MimeType, content)
	if err != nil {
		return rt.upstreamEnvelope("upload", err, headers)
	}

	return jsonEnvelope(http.StatusOK, headers, map[string]any{
		"success": true,
		"id":      id,
	})
}

// isTrue interprets a boolean query parameter.
func isTrue(v string) bool {
	return v == "true" || v == "1"
}

// cacheControl formats a max-age directive.
func cacheControl(maxAge int) string {
	return fmt.Sprintf("max-age=%d", maxAge)
}
