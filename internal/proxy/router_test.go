package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karhula/driveproxy/internal/gdrive"
)

// fakeStorage is a canned-response Storage for router tests.
type fakeStorage struct {
	entries    []gdrive.Entry
	listErr    error
	content    *gdrive.Content
	contentErr error
	meta       *gdrive.Entry
	metaErr    error
	createdID  string
	createErr  error

	lastParent  string
	lastName    string
	lastMime    string
	lastContent []byte
}

func (f *fakeStorage) List(_ context.Context, _ string) ([]gdrive.Entry, error) {
	return f.entries, f.listErr
}

func (f *fakeStorage) GetContent(_ context.Context, _ string) (*gdrive.Content, error) {
	return f.content, f.contentErr
}

func (f *fakeStorage) GetMetadata(_ context.Context, _ string) (*gdrive.Entry, error) {
	return f.meta, f.metaErr
}

func (f *fakeStorage) Create(_ context.Context, parentID, name, mimeType string, content []byte) (string, error) {
	f.lastParent, f.lastName, f.lastMime, f.lastContent = parentID, name, mimeType, content

	return f.createdID, f.createErr
}

const testOrigin = "https://app.example.com"

func newTestRouter(storage Storage) *Router {
	return NewRouter(storage, Options{
		Logger:         slog.Default(),
		AllowedOrigins: []string{testOrigin},
		CSVBOM:         true,
	})
}

func TestHandle_Preflight(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", testOrigin)

	env := rt.Handle(req)
	assert.Equal(t, http.StatusNoContent, env.Status)
	assert.Empty(t, env.Body)
	assert.Equal(t, testOrigin, env.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, corsAllowMethods, env.Headers["Access-Control-Allow-Methods"])
}

func TestHandle_UnknownOriginOmitsAllowOrigin(t *testing.T) {
	rt := newTestRouter(&fakeStorage{entries: []gdrive.Entry{}})

	req := httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil)
	req.Header.Set("Origin", "https://evil.example.net")

	env := rt.Handle(req)
	assert.Equal(t, http.StatusOK, env.Status)

	_, present := env.Headers["Access-Control-Allow-Origin"]
	assert.False(t, present, "unrecognized origin gets no allow-origin header")

	// Allow-methods/headers are still present on every response.
	assert.NotEmpty(t, env.Headers["Access-Control-Allow-Methods"])
	assert.NotEmpty(t, env.Headers["Access-Control-Allow-Headers"])
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		env := rt.Handle(httptest.NewRequest(method, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, env.Status, method)
	}
}

func TestHandle_MissingID(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	env := rt.Handle(httptest.NewRequest(http.MethodGet, "/?list=true", nil))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Contains(t, env.Body, "missing id")
}

func TestHandle_List(t *testing.T) {
	storage := &fakeStorage{
		entries: []gdrive.Entry{
			{ID: "f1", Name: "one.txt", MimeType: "text/plain", Size: 10},
			{ID: "f2", Name: "two.csv", MimeType: "text/csv", Size: 20},
		},
	}

	rt := newTestRouter(storage)

	req := httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil)
	req.Header.Set("Origin", testOrigin)

	env := rt.Handle(req)
	require.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "max-age=30", env.Headers["Cache-Control"])
	assert.Equal(t, "application/json", env.Headers["Content-Type"])
	assert.Equal(t, testOrigin, env.Headers["Access-Control-Allow-Origin"])

	var body struct {
		Files []gdrive.Entry `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(env.Body), &body))
	require.Len(t, body.Files, 2)
	assert.Equal(t, "f1", body.Files[0].ID)
	assert.Equal(t, "two.csv", body.Files[1].Name)
}

func TestHandle_ListEmptyFolder(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	env := rt.Handle(httptest.NewRequest(http.MethodGet, "/?id=F1&list=1", nil))
	require.Equal(t, http.StatusOK, env.Status)
	assert.JSONEq(t, `{"files":[]}`, env.Body)
}

func TestHandle_ListUpstreamError(t *testing.T) {
	rt := newTestRouter(&fakeStorage{
		listErr: &gdrive.DriveError{StatusCode: http.StatusNotFound, Err: gdrive.ErrNotFound},
	})

	env := rt.Handle(httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil))
	assert.Equal(t, http.StatusNotFound, env.Status, "upstream rejection passes through verbatim")

	var body errorBody
	require.NoError(t, json.Unmarshal([]byte(env.Body), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.NotContains(t, body.Error, "gdrive:", "internal detail never reaches the client")
}

func TestHandle_Upload(t *testing.T) {
	storage := &fakeStorage{createdID: "up-42"}
	rt := newTestRouter(storage)

	body := `{"upload":true,"parentId":"P1","name":"a.txt","content":"hello"}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Origin", testOrigin)

	env := rt.Handle(req)
	require.Equal(t, http.StatusOK, env.Status)
	assert.JSONEq(t, `{"success":true,"id":"up-42"}`, env.Body)

	assert.Equal(t, "P1", storage.lastParent)
	assert.Equal(t, "a.txt", storage.lastName)
	assert.Equal(t, "hello", string(storage.lastContent))
}

func TestHandle_UploadBase64Content(t *testing.T) {
	storage := &fakeStorage{createdID: "up-43"}
	rt := newTestRouter(storage)

	// "AAEC" is base64 for bytes 0x00 0x01 0x02.
	body := `{"upload":true,"parentId":"P1","name":"blob.bin","content":"AAEC","contentEncoding":"base64","mimeType":"application/octet-stream"}`

	env := rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, storage.lastContent)
	assert.Equal(t, "application/octet-stream", storage.lastMime)
}

func TestHandle_UploadValidation(t *testing.T) {
	rt := newTestRouter(&fakeStorage{createdID: "unused"})

	tests := []struct {
		name string
		body string
	}{
		{"missing parent", `{"upload":true,"name":"a.txt","content":"x"}`},
		{"missing name", `{"upload":true,"parentId":"P1","content":"x"}`},
		{"bad base64", `{"upload":true,"parentId":"P1","name":"a","content":"!!!","contentEncoding":"base64"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, env.Status)
		})
	}
}

func TestHandle_MalformedPostBody(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	env := rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Contains(t, env.Body, "malformed JSON")
}

func TestHandle_UnsupportedPostBody(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	env := rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"hello":"world"}`)))
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestServeHTTP_WritesEnvelope(t *testing.T) {
	rt := newTestRouter(&fakeStorage{
		entries: []gdrive.Entry{{ID: "f1", Name: "one.txt"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil)
	req.Header.Set("Origin", testOrigin)

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=30", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"one.txt"`)
}

func TestHandle_SetAllowedOriginsHotReload(t *testing.T) {
	rt := newTestRouter(&fakeStorage{})

	newOrigin := "https://beta.example.com"

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", newOrigin)

	env := rt.Handle(req)
	_, present := env.Headers["Access-Control-Allow-Origin"]
	assert.False(t, present)

	rt.SetAllowedOrigins([]string{testOrigin, newOrigin})

	env = rt.Handle(req)
	assert.Equal(t, newOrigin, env.Headers["Access-Control-Allow-Origin"])
}

func TestHandle_SessionAuth(t *testing.T) {
	creds := Credentials{
		"acme": {"alice": sha256Hex("s3cret")},
	}

	sessions := NewSessionStore(creds, time.Hour, slog.Default())

	rt := NewRouter(&fakeStorage{entries: []gdrive.Entry{}}, Options{
		Logger:         slog.Default(),
		AllowedOrigins: []string{testOrigin},
		Sessions:       sessions,
	})

	// Operation without a bearer token is rejected.
	env := rt.Handle(httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil))
	assert.Equal(t, http.StatusUnauthorized, env.Status)

	// Login mints a token.
	login := `{"action":"login","tenant":"acme","login":"alice","password":"s3cret"}`

	env = rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(login)))
	require.Equal(t, http.StatusOK, env.Status)

	var loginResp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(env.Body), &loginResp))
	assert.True(t, loginResp.Success)
	require.NotEmpty(t, loginResp.Token)

	// The token authorizes subsequent operations.
	req := httptest.NewRequest(http.MethodGet, "/?id=F1&list=true", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)

	env = rt.Handle(req)
	assert.Equal(t, http.StatusOK, env.Status)

	// Preflight stays exempt.
	env = rt.Handle(httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, env.Status)
}

func TestHandle_SessionAuthBadLogin(t *testing.T) {
	sessions := NewSessionStore(Credentials{
		"acme": {"alice": sha256Hex("s3cret")},
	}, time.Hour, slog.Default())

	rt := NewRouter(&fakeStorage{}, Options{Sessions: sessions})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"action":"login","tenant":"acme","login":"alice","password":"wrong"}`, http.StatusUnauthorized},
		{"unknown tenant", `{"action":"login","tenant":"ghost","login":"alice","password":"s3cret"}`, http.StatusUnauthorized},
		{"unknown login", `{"action":"login","tenant":"acme","login":"bob","password":"s3cret"}`, http.StatusUnauthorized},
		{"missing fields", `{"action":"login","tenant":"acme"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := rt.Handle(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, env.Status)
		})
	}
}

func TestClassifyUpstreamError_Exhaustion(t *testing.T) {
	status, _ := classifyUpstreamError(errors.New("something unexpected"))
	assert.Equal(t, http.StatusInternalServerError, status)
}
