package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/kmelnikov/slackvault/internal/common/errors"
	"github.com/kmelnikov/slackvault/internal/ingest"
	"github.com/kmelnikov/slackvault/internal/slack"
	"github.com/kmelnikov/slackvault/internal/store"
	"github.com/kmelnikov/slackvault/internal/webhook"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type stubStore struct {
	mu       sync.Mutex
	messages []store.Message
	failNext bool
}

func (s *stubStore) InsertMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		return fmt.Errorf("database unavailable")
	}
	msg.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *stubStore) InsertReaction(context.Context, *store.Reaction) error { return nil }

func (s *stubStore) UpdateReactionCount(context.Context, int64, string, int) error { return nil }

func (s *stubStore) GetReactionCount(context.Context, int64, string) (int, error) {
	return 0, apperrors.NotFound("reaction not found")
}

func (s *stubStore) GetMessageID(context.Context, time.Time) (int64, error) {
	return 0, apperrors.NotFound("message not found")
}

type stubResolver struct{}

func (stubResolver) UserName(context.Context, string) (string, error) { return "John Doe", nil }

func (stubResolver) ChannelName(context.Context, string) (string, error) { return "general", nil }

func newTestRouter(s *stubStore) *mux.Router {
	logger := zap.NewNop()
	dispatcher := ingest.NewDispatcher(s, stubResolver{}, logger, nil)
	handler := webhook.NewHandler(dispatcher, logger)

	r := mux.NewRouter()
	r.Use(webhook.RecoveryMiddleware(logger))
	r.Use(webhook.RequestIDMiddleware(logger))
	r.Use(webhook.SignatureMiddleware(testSecret, logger))
	handler.Register(r)
	return r
}

func signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()

	ts := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", slack.Sign(testSecret, ts, body))
	return req
}

func TestHandleURLVerification(t *testing.T) {
	router := newTestRouter(&stubStore{})

	body := []byte(`{"type":"url_verification","challenge":"ch4ll3nge"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ch4ll3nge", resp["challenge"])
}

func TestHandleMessageEvent(t *testing.T) {
	s := &stubStore{}
	router := newTestRouter(s)

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev12345",
		"event": {
			"type": "message",
			"user": "U1",
			"text": "hello",
			"ts": "1712345678.000100",
			"channel": "C1"
		}
	}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.messages, 1)
	assert.Equal(t, "hello", s.messages[0].Text)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	s := &stubStore{}
	router := newTestRouter(s)

	body := []byte(`{"type":"event_callback","event":{"type":"message","user":"U1","ts":"1712345678.000100","channel":"C1"}}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())

	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", slack.Sign("wrong-secret", ts, body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.messages)
}

func TestHandleRejectsStaleTimestamp(t *testing.T) {
	router := newTestRouter(&stubStore{})

	body := []byte(`{"type":"url_verification","challenge":"x"}`)
	ts := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())

	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", slack.Sign(testSecret, ts, body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMalformedPayload(t *testing.T) {
	router := newTestRouter(&stubStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, []byte(`{not json`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEventCallbackWithoutEvent(t *testing.T) {
	router := newTestRouter(&stubStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, []byte(`{"type":"event_callback"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAcks200OnStorageFailure(t *testing.T) {
	s := &stubStore{failNext: true}
	router := newTestRouter(s)

	body := []byte(`{
		"type": "event_callback",
		"event": {
			"type": "message",
			"user": "U1",
			"text": "hello",
			"ts": "1712345678.000100",
			"channel": "C1"
		}
	}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, body))

	// Storage failed, but the delivery is still acknowledged.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.messages)
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(&stubStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, []byte(`{"type":"url_verification","challenge":"x"}`)))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
