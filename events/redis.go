package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	notificationStream = "padel:notifications"
	auditStream        = "padel:audit"

	// Streams are capped so an idle consumer cannot grow them unbounded.
	streamMaxLen = 100000

	publishTimeout = 2 * time.Second
)

// RedisPublisher appends notifications and audit records to Redis streams.
// Consumers (delivery workers, the audit archiver) read with consumer groups.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) append(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": data},
	}).Err()
}

func (p *RedisPublisher) Notify(ctx context.Context, n Notification) error {
	n.Recipients = DedupeRecipients(n.Recipients)
	if len(n.Recipients) == 0 {
		return nil
	}
	if err := p.append(ctx, notificationStream, n); err != nil {
		p.logger.Error("notification publish failed",
			slog.String("type", n.Type), slog.Any("error", err))
		return err
	}
	return nil
}

func (p *RedisPublisher) Audit(ctx context.Context, a AuditRecord) error {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if err := p.append(ctx, auditStream, a); err != nil {
		p.logger.Error("audit publish failed",
			slog.String("action", a.Action), slog.Any("error", err))
		return err
	}
	return nil
}
