package gdrive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTune_OverridesPolicies(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")

	client.Tune(Tuning{
		List:     PolicyOverride{Attempts: 1, AttemptTimeout: 2 * time.Second},
		Download: PolicyOverride{Attempts: 5},
		Upload:   PolicyOverride{AttemptTimeout: 90 * time.Second},
	})

	assert.Equal(t, 1, client.listPolicy.Attempts)
	assert.Equal(t, 2*time.Second, client.listPolicy.AttemptTimeout)

	assert.Equal(t, 5, client.downloadPolicy.Attempts)
	assert.Equal(t, DownloadPolicy().AttemptTimeout, client.downloadPolicy.AttemptTimeout,
		"unset override field keeps the built-in value")

	assert.Equal(t, UploadPolicy().Attempts, client.uploadPolicy.Attempts)
	assert.Equal(t, 90*time.Second, client.uploadPolicy.AttemptTimeout)
}

func TestTune_ZeroValueKeepsDefaults(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")

	client.Tune(Tuning{})

	assert.Equal(t, ListPolicy().Attempts, client.listPolicy.Attempts)
	assert.Equal(t, DownloadPolicy().AttemptTimeout, client.downloadPolicy.AttemptTimeout)
	assert.Equal(t, UploadPolicy().Attempts, client.uploadPolicy.Attempts)
	assert.Equal(t, defaultMaxListPages, client.maxListPages)
}

func TestTune_SingleAttemptSkipsRetries(t *testing.T) {
	// 503 is in the list policy's retryable set, but a tuned attempt
	// budget of one makes the first response final.
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.Tune(Tuning{List: PolicyOverride{Attempts: 1}})

	_, err := client.List(context.Background(), "folder1")
	require.Error(t, err)

	var driveErr *DriveError
	require.ErrorAs(t, err, &driveErr)
	assert.Equal(t, http.StatusServiceUnavailable, driveErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}
