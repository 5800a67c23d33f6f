package gdrive

import (
	"net/http"
	"time"
)

// RetryPolicy bounds a single API call: how many attempts, how long each
// attempt may run, how backoff grows between attempts, and which status
// codes are worth retrying at all.
type RetryPolicy struct {
	// Attempts is the total attempt budget, including the first try.
	Attempts int

	// AttemptTimeout is the hard deadline for one attempt, covering
	// connection, transfer, and body read. Exceeding it aborts the
	// in-flight call and counts as a failed attempt.
	AttemptTimeout time.Duration

	// BaseDelay is the backoff before the first retry. Subsequent
	// retries double it: BaseDelay * 2^attemptIndex.
	BaseDelay time.Duration

	// JitterBound is the upper bound of the uniform random jitter
	// added to each backoff delay.
	JitterBound time.Duration

	// RetryableStatus is the set of upstream status codes that justify
	// another attempt. Anything else is returned as the final result.
	RetryableStatus map[int]bool
}

// Retryable reports whether the given status code is in the policy's
// retryable set.
func (p RetryPolicy) Retryable(code int) bool {
	return p.RetryableStatus[code]
}

// PolicyOverride carries operator tuning for one operation's policy.
// Zero fields keep the built-in value.
type PolicyOverride struct {
	Attempts       int
	AttemptTimeout time.Duration
}

// apply returns the policy with any positive override fields replacing
// the built-in values.
func (p RetryPolicy) apply(o PolicyOverride) RetryPolicy {
	if o.Attempts > 0 {
		p.Attempts = o.Attempts
	}

	if o.AttemptTimeout > 0 {
		p.AttemptTimeout = o.AttemptTimeout
	}

	return p
}

// Per-operation policies. Metadata listing is cheap, so it retries
// aggressively under a short deadline. Content download gets a long
// deadline and few retries: re-fetching a large file compounds a slow
// transfer into several redundant ones, which is also why 504 is left
// out of its retryable set. Upload sits in between.
func ListPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       4,
		AttemptTimeout: 8 * time.Second,
		BaseDelay:      300 * time.Millisecond,
		JitterBound:    250 * time.Millisecond,
		RetryableStatus: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

func DownloadPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       2,
		AttemptTimeout: 60 * time.Second,
		BaseDelay:      time.Second,
		JitterBound:    500 * time.Millisecond,
		RetryableStatus: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
		},
	}
}

func UploadPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		AttemptTimeout: 30 * time.Second,
		BaseDelay:      500 * time.Millisecond,
		JitterBound:    400 * time.Millisecond,
		RetryableStatus: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}
