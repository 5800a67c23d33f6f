package proxy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/karhula/driveproxy/internal/gdrive"
	"github.com/karhula/driveproxy/internal/tokencache"
)

// upstreamEnvelope converts a storage-layer error into the client-facing
// error envelope per the taxonomy: credential failures are 500, exhausted
// timeouts 504, unreachable upstream 502, and a final upstream status is
// passed through verbatim. Diagnostic detail is logged, never echoed.
func (rt *Router) upstreamEnvelope(op string, err error, headers map[string]string) Envelope {
	status, msg := classifyUpstreamError(err)

	rt.logger.Error("operation failed",
		slog.String("op", op),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	return errorEnvelope(status, headers, msg)
}

func classifyUpstreamError(err error) (int, string) {
	switch {
	case errors.Is(err, tokencache.ErrConfig), errors.Is(err, tokencache.ErrAuth):
		return http.StatusInternalServerError, "storage authentication failed"
	case errors.Is(err, gdrive.ErrTimeout):
		return http.StatusGatewayTimeout, "storage API timed out"
	case errors.Is(err, gdrive.ErrTransport):
		return http.StatusBadGateway, "storage API unreachable"
	}

	var driveErr *gdrive.DriveError
	if errors.As(err, &driveErr) {
		return driveErr.StatusCode, "storage API error"
	}

	return http.StatusInternalServerError, "internal error"
}
