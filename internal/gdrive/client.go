package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "driveproxy/0.1"

// Default API endpoints. Overridable via NewClient for tests.
const (
	DefaultBaseURL   = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3"
)

// TokenProvider supplies bearer tokens for the Drive API. Defined at the
// consumer per Go convention "accept interfaces, return structs"; the
// tokencache package provides the real implementation.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the Google Drive v3 API. It handles request
// construction, authentication, per-attempt deadlines, and retry with
// exponential backoff and jitter under per-operation policies.
type Client struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger

	// Per-operation policies and the listing page ceiling, adjustable
	// via Tune before serving traffic.
	listPolicy     RetryPolicy
	downloadPolicy RetryPolicy
	uploadPolicy   RetryPolicy
	maxListPages   int

	// sleepFunc waits between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Drive API client. Empty baseURL/uploadURL select the
// production endpoints.
func NewClient(baseURL, uploadURL string, httpClient *http.Client, tokens TokenProvider, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        baseURL,
		uploadURL:      uploadURL,
		httpClient:     httpClient,
		tokens:         tokens,
		logger:         logger,
		listPolicy:     ListPolicy(),
		downloadPolicy: DownloadPolicy(),
		uploadPolicy:   UploadPolicy(),
		maxListPages:   defaultMaxListPages,
		sleepFunc:      timeSleep,
	}
}

// Tuning carries operator overrides for the per-operation retry policies
// and the listing page ceiling. Zero fields keep built-in defaults.
type Tuning struct {
	List, Download, Upload PolicyOverride

	MaxListPages int
}

// Tune applies operator overrides. Call before serving traffic; policy
// reads are not synchronized.
func (c *Client) Tune(t Tuning) {
	c.listPolicy = c.listPolicy.apply(t.List)
	c.downloadPolicy = c.downloadPolicy.apply(t.Download)
	c.uploadPolicy = c.uploadPolicy.apply(t.Upload)

	if t.MaxListPages > 0 {
		c.maxListPages = t.MaxListPages
	}
}

// apiResponse is a fully-read upstream response. The executor drains the
// body inside the attempt deadline so a slow transfer counts against the
// per-attempt timeout rather than hanging the caller later.
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *apiResponse) success() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// fatalError marks an attempt failure that retrying cannot fix.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// requestFunc builds a fresh outbound request for one attempt. A factory
// rather than a single *http.Request so bodies (multipart uploads) can be
// rebuilt for each retry.
type requestFunc func(ctx context.Context) (*http.Request, error)

// do executes a request under the given retry policy.
//
// An attempt succeeds when the status is 2xx. It is retried when the
// transport call failed or the status is in the policy's retryable set;
// any other status is returned immediately as the final result. After the
// attempt budget is exhausted, a transport failure on the last attempt
// propagates as an error (ErrTimeout when the attempt deadline fired),
// otherwise the last unsuccessful response is returned as-is — callers
// must check the status explicitly.
func (c *Client) do(ctx context.Context, pol RetryPolicy, op string, newReq requestFunc) (*apiResponse, error) {
	var (
		lastResp *apiResponse
		lastErr  error
	)

	for attempt := 0; attempt < pol.Attempts; attempt++ {
		resp, err := c.doOnce(ctx, pol.AttemptTimeout, newReq)
		lastResp, lastErr = resp, err

		if err != nil {
			// The caller going away is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("gdrive: %s canceled: %w", op, ctx.Err())
			}

			// Credential and request-construction failures cannot be
			// fixed by retrying.
			var fatal *fatalError
			if errors.As(err, &fatal) {
				return nil, fmt.Errorf("gdrive: %s: %w", op, fatal.err)
			}
		} else {
			if resp.success() {
				c.logger.Debug("request succeeded",
					slog.String("op", op),
					slog.Int("status", resp.StatusCode),
					slog.Int("attempt", attempt+1),
				)

				return resp, nil
			}

			if !pol.Retryable(resp.StatusCode) {
				// Final answer from upstream, retryable or not —
				// the executor must not swallow it.
				return resp, nil
			}
		}

		if attempt == pol.Attempts-1 {
			break
		}

		backoff := c.retryBackoff(pol, lastResp, attempt)
		c.logRetry(op, attempt, backoff, lastResp, lastErr)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil, fmt.Errorf("gdrive: %s canceled: %w", op, sleepErr)
		}
	}

	if lastErr != nil {
		if errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("gdrive: %s failed after %d attempts: %w", op, pol.Attempts, ErrTimeout)
		}

		return nil, fmt.Errorf("gdrive: %s failed after %d attempts (%v): %w", op, pol.Attempts, lastErr, ErrTransport)
	}

	c.logger.Warn("retry budget exhausted, returning last response",
		slog.String("op", op),
		slog.Int("status", lastResp.StatusCode),
		slog.Int("attempts", pol.Attempts),
	)

	return lastResp, nil
}

// doOnce executes a single attempt under its own deadline and reads the
// full response body before the deadline's cancel releases the transport.
func (c *Client) doOnce(ctx context.Context, timeout time.Duration, newReq requestFunc) (*apiResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := newReq(attemptCtx)
	if err != nil {
		return nil, &fatalError{fmt.Errorf("building request: %w", err)}
	}

	tok, err := c.tokens.Token(attemptCtx)
	if err != nil {
		return nil, &fatalError{fmt.Errorf("obtaining token: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Surface the attempt deadline as such so exhaustion maps to 504.
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt deadline: %w", context.DeadlineExceeded)
		}

		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt deadline while reading body: %w", context.DeadlineExceeded)
		}

		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &apiResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// retryBackoff computes baseDelay * 2^attempt + uniform(0, jitterBound).
// For 429 responses carrying a Retry-After header, that value wins.
func (c *Client) retryBackoff(pol RetryPolicy, resp *apiResponse, attempt int) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	backoff := pol.BaseDelay << uint(attempt)
	if pol.JitterBound > 0 {
		backoff += time.Duration(rand.Int64N(int64(pol.JitterBound))) //nolint:gosec // jitter does not need crypto rand
	}

	return backoff
}

func (c *Client) logRetry(op string, attempt int, backoff time.Duration, resp *apiResponse, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.Int("attempt", attempt+1),
		slog.Duration("backoff", backoff),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		c.logger.Warn("retrying after transport error", attrs...)

		return
	}

	attrs = append(attrs, slog.Int("status", resp.StatusCode))
	c.logger.Warn("retrying after HTTP error", attrs...)
}

// errorFromResponse converts a non-2xx apiResponse into a DriveError,
// logging the truncated upstream body for diagnosis.
func (c *Client) errorFromResponse(op string, resp *apiResponse) error {
	c.logger.Error("upstream request failed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", truncate(string(resp.Body), maxLoggedBody)),
	)

	return newDriveError(resp.StatusCode, resp.Body)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
