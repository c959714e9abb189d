package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kmelnikov/slackvault/internal/infra/cache"
	"github.com/kmelnikov/slackvault/internal/observability"
	"github.com/kmelnikov/slackvault/internal/slack"
)

// ChatAPI is the subset of the platform Web API the resolver needs.
type ChatAPI interface {
	UserInfo(ctx context.Context, userID string) (*slack.User, error)
	ConversationInfo(ctx context.Context, channelID string) (*slack.Channel, error)
}

// Resolver maps opaque user/channel ids to display names, read-aside through
// redis when a cache is configured. Cache failures degrade to a direct API
// call; API failures surface to the caller.
type Resolver struct {
	api     ChatAPI
	cache   *cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

func New(api ChatAPI, c *cache.Cache, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		api:     api,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *Resolver) UserName(ctx context.Context, userID string) (string, error) {
	key := "slackvault:user:" + userID
	if name, ok := r.cached(ctx, key); ok {
		r.observe("user", "cache_hit")
		return name, nil
	}

	user, err := r.api.UserInfo(ctx, userID)
	if err != nil {
		r.observe("user", "error")
		return "", err
	}

	r.observe("user", "ok")
	r.remember(ctx, key, user.RealName)
	return user.RealName, nil
}

func (r *Resolver) ChannelName(ctx context.Context, channelID string) (string, error) {
	key := "slackvault:channel:" + channelID
	if name, ok := r.cached(ctx, key); ok {
		r.observe("channel", "cache_hit")
		return name, nil
	}

	channel, err := r.api.ConversationInfo(ctx, channelID)
	if err != nil {
		r.observe("channel", "error")
		return "", err
	}

	r.observe("channel", "ok")
	r.remember(ctx, key, channel.Name)
	return channel.Name, nil
}

func (r *Resolver) cached(ctx context.Context, key string) (string, bool) {
	if r.cache == nil {
		return "", false
	}

	var name string
	err := r.cache.Get(ctx, key, &name)
	if err == nil {
		return name, true
	}
	if err != cache.ErrCacheMiss {
		r.logger.Debug("name cache read failed", zap.String("key", key), zap.Error(err))
	}
	return "", false
}

func (r *Resolver) remember(ctx context.Context, key, name string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, name, r.ttl); err != nil {
		r.logger.Debug("name cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Resolver) observe(kind, result string) {
	if r.metrics != nil {
		r.metrics.ObserveLookup(kind, result)
	}
}
