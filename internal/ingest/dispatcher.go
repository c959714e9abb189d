package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kmelnikov/slackvault/internal/common/errors"
	"github.com/kmelnikov/slackvault/internal/observability"
	"github.com/kmelnikov/slackvault/internal/slack"
	"github.com/kmelnikov/slackvault/internal/store"
)

// Store is the persistence gateway the dispatcher writes through.
type Store interface {
	InsertMessage(ctx context.Context, msg *store.Message) error
	InsertReaction(ctx context.Context, reaction *store.Reaction) error
	UpdateReactionCount(ctx context.Context, messageID int64, reactionName string, count int) error
	GetReactionCount(ctx context.Context, messageID int64, reactionName string) (int, error)
	GetMessageID(ctx context.Context, sentAt time.Time) (int64, error)
}

// Resolver turns opaque platform ids into display names.
type Resolver interface {
	UserName(ctx context.Context, userID string) (string, error)
	ChannelName(ctx context.Context, channelID string) (string, error)
}

// Dispatcher is the per-event entry point. Dispatch never returns an error:
// failures are logged here and go no further, so the webhook layer always
// acknowledges the delivery.
type Dispatcher struct {
	store    Store
	resolver Resolver
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewDispatcher(s Store, r Resolver, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		store:    s,
		resolver: r,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch classifies and processes one inbound event. Errors from the
// handlers surface here, are logged, and are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *slack.Event) {
	if ev == nil {
		return
	}

	switch ev.Type {
	case slack.EventTypeMessage:
		if err := d.handleMessage(ctx, ev); err != nil {
			d.observe(ev.Type, "error")
			d.logger.Error("message event not persisted",
				zap.String("channel", ev.Channel),
				zap.String("ts", ev.TS),
				zap.Error(err),
			)
			return
		}
		d.observe(ev.Type, "ok")
	case slack.EventTypeReactionAdded:
		if err := d.handleReaction(ctx, ev); err != nil {
			d.observe(ev.Type, "error")
			d.logger.Error("reaction event not persisted",
				zap.String("reaction", ev.Reaction),
				zap.Error(err),
			)
			return
		}
		d.observe(ev.Type, "ok")
	default:
		d.observe(ev.Type, "ignored")
		d.logger.Debug("ignoring event", zap.String("type", ev.Type))
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev *slack.Event) error {
	if ev.User == "" || ev.IsBot || ev.BotID != "" {
		d.logger.Debug("skipping bot or userless message",
			zap.String("channel", ev.Channel),
			zap.String("subtype", ev.Subtype),
		)
		return nil
	}

	sentAt, err := slack.ParseTimestamp(ev.TS)
	if err != nil {
		return fmt.Errorf("message timestamp: %w", err)
	}

	// A malformed thread_ts means the message is treated as not being a
	// reply, it does not fail the event.
	parentSentAt, err := slack.ParseOptionalTimestamp(ev.ThreadTS)
	if err != nil {
		d.logger.Warn("unparseable thread_ts, storing message as non-reply",
			zap.String("thread_ts", ev.ThreadTS),
		)
		parentSentAt = nil
	}

	userName, err := d.resolver.UserName(ctx, ev.User)
	if err != nil {
		return fmt.Errorf("resolve user %s: %w", ev.User, err)
	}

	channelName, err := d.resolver.ChannelName(ctx, ev.Channel)
	if err != nil {
		d.logger.Warn("channel name lookup failed, persisting without it",
			zap.String("channel", ev.Channel),
			zap.Error(err),
		)
		channelName = ""
	}

	msg := &store.Message{
		UserID:       ev.User,
		UserName:     userName,
		ChannelID:    ev.Channel,
		ChannelName:  channelName,
		Text:         ev.Text,
		SentAt:       sentAt,
		ParentSentAt: parentSentAt,
	}

	if err := d.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	d.logger.Info("message saved",
		zap.Int64("message_id", msg.ID),
		zap.String("channel", ev.Channel),
		zap.String("user", ev.User),
	)
	return nil
}

func (d *Dispatcher) handleReaction(ctx context.Context, ev *slack.Event) error {
	if ev.Item == nil || ev.Item.Type != slack.ItemTypeMessage {
		d.logger.Debug("skipping reaction on non-message item")
		return nil
	}

	itemAt, err := slack.ParseTimestamp(ev.Item.TS)
	if err != nil {
		return fmt.Errorf("item timestamp: %w", err)
	}

	reactedAt, err := slack.ParseTimestamp(ev.EventTS)
	if err != nil {
		return fmt.Errorf("event timestamp: %w", err)
	}

	userName, err := d.resolver.UserName(ctx, ev.User)
	if err != nil {
		return fmt.Errorf("resolve user %s: %w", ev.User, err)
	}

	messageID, err := d.store.GetMessageID(ctx, itemAt)
	if errors.IsNotFound(err) {
		d.logger.Warn("reaction for unknown message, dropping",
			zap.String("item_ts", ev.Item.TS),
			zap.String("reaction", ev.Reaction),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up message: %w", err)
	}

	// Read-then-write with no lock or upsert: two concurrent reactions on
	// the same (message, reaction) pair can both miss the read and insert
	// two rows. Documented behavior, not a bug to patch here.
	count, err := d.store.GetReactionCount(ctx, messageID, ev.Reaction)
	switch {
	case err == nil:
		if err := d.store.UpdateReactionCount(ctx, messageID, ev.Reaction, count+1); err != nil {
			return fmt.Errorf("update reaction count: %w", err)
		}
		d.logger.Info("reaction count updated",
			zap.Int64("message_id", messageID),
			zap.String("reaction", ev.Reaction),
			zap.Int("count", count+1),
		)
	case errors.IsNotFound(err):
		reaction := &store.Reaction{
			MessageID: messageID,
			UserID:    ev.User,
			UserName:  userName,
			Name:      ev.Reaction,
			ReactedAt: reactedAt,
			Count:     1,
		}
		if err := d.store.InsertReaction(ctx, reaction); err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		d.logger.Info("reaction saved",
			zap.Int64("message_id", messageID),
			zap.String("reaction", ev.Reaction),
		)
	default:
		return fmt.Errorf("get reaction count: %w", err)
	}

	return nil
}

func (d *Dispatcher) observe(eventType, outcome string) {
	if d.metrics != nil {
		d.metrics.ObserveEvent(eventType, outcome)
	}
}
