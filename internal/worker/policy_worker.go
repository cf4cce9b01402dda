package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// PolicyReloader refreshes the authorization engine from its loader.
type PolicyReloader struct {
	engine  *authz.Engine
	loader  authz.PolicyLoader
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPolicyReloader wires a reloader.
func NewPolicyReloader(engine *authz.Engine, loader authz.PolicyLoader, metrics *observability.Metrics, logger *zap.Logger) *PolicyReloader {
	return &PolicyReloader{engine: engine, loader: loader, metrics: metrics, logger: logger}
}

// ReloadOnce swaps in a freshly loaded policy. A failed load keeps the current one.
func (r *PolicyReloader) ReloadOnce(ctx context.Context) error {
	err := r.engine.Reload(ctx, r.loader)
	r.metrics.PolicyReload(err == nil)
	if err != nil {
		r.logger.Error("policy reload failed", zap.Error(err))
		return err
	}
	r.logger.Info("policy reloaded", zap.Int("roles", len(r.engine.Policy().Roles())))
	return nil
}

// Run reloads once per invalidation message until ctx is done or msgs closes.
func (r *PolicyReloader) Run(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.logger.Debug("policy invalidation received", zap.String("channel", msg.Channel), zap.String("payload", msg.Payload))
			_ = r.ReloadOnce(ctx)
		}
	}
}

// StartPolicyWorker subscribes to channel and reloads the policy on every
// message. The returned function closes the subscription.
func StartPolicyWorker(ctx context.Context, client *redis.Client, channel string, reloader *PolicyReloader) func() {
	if client == nil || reloader == nil {
		return func() {}
	}
	sub := client.Subscribe(ctx, channel)
	go reloader.Run(ctx, sub.Channel())
	return func() { _ = sub.Close() }
}
