package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries the connection and pool knobs the matching pipeline
// actually tunes, trimmed from the teacher's pkg/database RedisConfig down
// to what a FIFO-queue-plus-pubsub client needs.
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// RedisBroker implements Broker on top of github.com/redis/go-redis/v9,
// using RPush/BLPop for the work queue and Publish/Subscribe for
// response and market-update topics — the same primitives
// original_source's redis crate usage drives (conn.blpop("order", 0),
// conn.publish(...)).
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker parses cfg.URL, applies the pool settings, and verifies
// connectivity with a bounded Ping, in the teacher's NewRedisClient style.
func NewRedisBroker(cfg RedisConfig) (*RedisBroker, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.MinIdleConns
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBroker{client: client}, nil
}

func (b *RedisBroker) Push(ctx context.Context, queue string, payload []byte) error {
	return b.client.RPush(ctx, queue, payload).Err()
}

func (b *RedisBroker) Pop(ctx context.Context, queue string) ([]byte, error) {
	res, err := b.client.BLPop(ctx, 0, queue).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("blpop %s: %w", queue, err)
	}
	// BLPop returns [queue, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("blpop %s: unexpected reply shape %v", queue, res)
	}
	return []byte(res[1]), nil
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	// Wait for the subscribe ack so the caller knows delivery is live
	// before it triggers whatever will publish back — the subscribe-
	// before-push fix spec.md §9 calls out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return &redisSubscription{pubsub: pubsub, ch: pubsub.Channel()}, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

func (s *redisSubscription) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return Message{}, fmt.Errorf("subscription closed")
		}
		return Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}, nil
	}
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
