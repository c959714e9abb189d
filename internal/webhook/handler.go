package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kmelnikov/slackvault/internal/common/logging"
	"github.com/kmelnikov/slackvault/internal/ingest"
	"github.com/kmelnikov/slackvault/internal/slack"
)

// Handler serves the Slack Events API endpoint. Event processing outcomes are
// never reflected in the HTTP response: once a delivery is authenticated and
// well-formed it is acknowledged with 200 regardless of what dispatch does.
type Handler struct {
	dispatcher *ingest.Dispatcher
	logger     *zap.Logger
}

func NewHandler(dispatcher *ingest.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/slack/events", h.handleEvents).Methods(http.MethodPost)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var callback slack.EventCallback
	if err := json.NewDecoder(r.Body).Decode(&callback); err != nil {
		h.logger.Warn("malformed event payload", zap.Error(err))
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	switch callback.Type {
	case slack.CallbackTypeURLVerification:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": callback.Challenge})
	case slack.CallbackTypeEventCallback:
		if callback.Event == nil {
			http.Error(w, "missing event", http.StatusBadRequest)
			return
		}
		ctx := logging.WithLogger(r.Context(), logging.FromContext(r.Context()).With(
			zap.String("event_id", callback.EventID),
		))
		h.dispatcher.Dispatch(ctx, callback.Event)
		w.WriteHeader(http.StatusOK)
	default:
		h.logger.Debug("ignoring callback", zap.String("type", callback.Type))
		w.WriteHeader(http.StatusOK)
	}
}
