package broker

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process implementation of Broker, backed by
// buffered channels for queues and a fan-out registry for pub/sub. It
// exists so the intake/worker/gateway concurrency contract can be
// exercised by unit tests and the standalone demo without a live Redis
// instance, mirroring spec.md §4.F's "broker choice is abstract" note.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryBroker returns a ready-to-use in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string]chan []byte),
		subs:   make(map[string][]*memorySubscription),
	}
}

func (b *MemoryBroker) queueFor(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan []byte, 4096)
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBroker) Push(ctx context.Context, queue string, payload []byte) error {
	q := b.queueFor(queue)
	select {
	case q <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Pop(ctx context.Context, queue string) ([]byte, error) {
	q := b.queueFor(queue)
	select {
	case payload := <-q:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	subs := append([]*memorySubscription(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- Message{Topic: topic, Payload: payload}:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Slow subscriber: drop, matching Redis pub/sub's
			// at-most-once, no-backpressure delivery.
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{
		broker: b,
		topic:  topic,
		ch:     make(chan Message, 256),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return sub, nil
}

func (b *MemoryBroker) unsubscribe(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *MemoryBroker) Close() error {
	return nil
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  string
	ch     chan Message
	once   sync.Once
	done   chan struct{}
}

func (s *memorySubscription) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return Message{}, context.Canceled
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
		close(s.done)
	})
	return nil
}
