package pipeline

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
)

// requestIDKey is a private type for the request id context key.
type requestIDKey struct{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ensureRequestID returns a context carrying a request id, taken from
// the X-Request-ID header when present and generated otherwise.
func ensureRequestID(r *http.Request) context.Context {
	ctx := r.Context()
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = generateRequestID()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// generateRequestID creates a new unique request ID as a hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ClientIP returns the client address for rate limiting and audit
// entries: the first X-Forwarded-For hop when present, otherwise the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// captureBody reads up to max bytes of the request body for audit
// details and splices them back so the handler reads the full body.
func captureBody(r *http.Request, max int) []byte {
	if r.Body == nil {
		return nil
	}

	buf := make([]byte, max)
	n, _ := io.ReadFull(r.Body, buf)
	captured := buf[:n]

	r.Body = struct {
		io.Reader
		io.Closer
	}{
		Reader: io.MultiReader(bytes.NewReader(captured), r.Body),
		Closer: r.Body,
	}

	return captured
}

// responseRecorder captures the response status and, for failure
// outcomes, a bounded prefix of the response body so the handler's own
// error message can be copied into the audit entry.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       bytes.Buffer
	maxBody    int
}

func newResponseRecorder(w http.ResponseWriter, maxBody int) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK, maxBody: maxBody}
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *responseRecorder) WriteHeader(status int) {
	if !w.written {
		w.statusCode = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer, retaining a bounded copy of
// failure responses.
func (w *responseRecorder) Write(b []byte) (int, error) {
	w.written = true
	if w.statusCode >= 400 && w.body.Len() < w.maxBody {
		remaining := w.maxBody - w.body.Len()
		if len(b) <= remaining {
			w.body.Write(b)
		} else {
			w.body.Write(b[:remaining])
		}
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *responseRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *responseRecorder) status() int {
	return w.statusCode
}

// errorMessage extracts the handler's error message from a failure
// response. It understands the {"error":{"message":...}} envelope and a
// bare {"message":...} object, and falls back to the raw body prefix.
func (w *responseRecorder) errorMessage() string {
	raw := w.body.Bytes()
	if len(raw) == 0 {
		return http.StatusText(w.statusCode)
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}

	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
