// Package proxy routes inbound browser requests to the storage backend
// and shapes the outbound response envelope: CORS decision, caching hints,
// text normalization, and the JSON error contract.
package proxy

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// Envelope is the transport-neutral response contract: status, headers,
// and a body that is either a UTF-8 string or base64 when IsBase64 is set.
// Every envelope carries a CORS decision — allow-origin present for a
// recognized origin, deliberately absent otherwise.
type Envelope struct {
	Status   int
	Headers  map[string]string
	Body     string
	IsBase64 bool
}

// Write renders the envelope onto an HTTP response, decoding base64
// bodies back into raw bytes.
func (e Envelope) Write(w http.ResponseWriter) error {
	// Headers first: the CORS decision must survive even the failure
	// path below, or the browser hides the error behind a CORS block.
	for k, v := range e.Headers {
		w.Header().Set(k, v)
	}

	body := []byte(e.Body)

	if e.IsBase64 {
		decoded, err := base64.StdEncoding.DecodeString(e.Body)
		if err != nil {
			// A malformed base64 body is a programming error upstream
			// of Write; fail closed rather than serve garbage.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"internal error"}`)

			return fmt.Errorf("proxy: decoding base64 envelope body: %w", err)
		}

		body = decoded
	}

	w.WriteHeader(e.Status)

	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("proxy: writing response body: %w", err)
		}
	}

	return nil
}

// jsonEnvelope marshals v as the response body with a JSON content type.
// Marshal failures degrade to a plain 500 error envelope.
func jsonEnvelope(status int, headers map[string]string, v any) Envelope {
	body, err := json.Marshal(v)
	if err != nil {
		headers["Content-Type"] = "application/json"

		return Envelope{
			Status:  http.StatusInternalServerError,
			Headers: headers,
			Body:    `{"error":"internal error"}`,
		}
	}

	headers["Content-Type"] = "application/json"

	return Envelope{
		Status:  status,
		Headers: headers,
		Body:    string(body),
	}
}

// errorBody is the client-facing JSON error contract.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// errorEnvelope builds the JSON error envelope. The message is a stable,
// generic phrase — upstream diagnostic detail goes to the log, never to
// the client.
func errorEnvelope(status int, headers map[string]string, msg string) Envelope {
	return jsonEnvelope(status, headers, errorBody{Error: msg, Status: status})
}
