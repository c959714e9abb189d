package webhook

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kmelnikov/slackvault/internal/common/logging"
	"github.com/kmelnikov/slackvault/internal/slack"
)

// maxBodySize caps inbound payloads; Events API deliveries are small.
const maxBodySize = 1 << 20

// SignatureMiddleware authenticates deliveries against the signing secret
// before any payload parsing happens. The body is re-attached for the next
// handler.
func SignatureMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				http.Error(w, "cannot read body", http.StatusBadRequest)
				return
			}

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")

			if err := slack.VerifySignature(secret, timestamp, signature, body); err != nil {
				logger.Warn("rejected unsigned delivery",
					zap.String("remote", r.RemoteAddr),
					zap.Error(err),
				)
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware assigns each delivery a request id and stores an
// enriched logger in the request context.
func RequestIDMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With(
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
			)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), enriched)))
		})
	}
}

func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("stack", string(debug.Stack())),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
