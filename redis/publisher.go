package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qubic/chains-status/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Publisher stores the latest snapshot under a key and announces it on a channel.
type Publisher struct {
	client  goredis.UniversalClient
	key     string
	channel string
	ttl     time.Duration
}

func NewPublisher(client goredis.UniversalClient, key, channel string, ttl time.Duration) *Publisher {
	return &Publisher{
		client:  client,
		key:     key,
		channel: channel,
		ttl:     ttl,
	}
}

func (p *Publisher) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	_, err = p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, p.key, payload, p.ttl)
		if p.channel != "" {
			pipe.Publish(ctx, p.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing snapshot of generation [%d] to redis: %w", snapshot.Generation, err)
	}
	return nil
}
