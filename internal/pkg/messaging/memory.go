package messaging

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type memorySub struct {
	handler Handler
	autoAck bool
}

// Memory is an in-process broker. Publish delivers synchronously to every
// consumer group subscribed to the topic; within a group the most recent
// subscriber wins. It is meant for local runs and tests.
type Memory struct {
	seq atomic.Uint64

	mu     sync.RWMutex
	topics map[string]map[string]memorySub
	closed bool
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{topics: map[string]map[string]memorySub{}}
}

// Close drops every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.topics = map[string]map[string]memorySub{}
	return nil
}

// Publish hands the message to every subscribed group and returns once all
// handlers have run.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return PublishResult{}, ErrClosed
	}
	subs := make([]memorySub, 0, len(m.topics[destination]))
	for _, sub := range m.topics[destination] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	id := strconv.FormatUint(m.seq.Add(1), 10)
	now := time.Now()
	for _, sub := range subs {
		in := &memoryMessage{id: id, topic: destination, at: now, out: msg}
		//nolint:errcheck // memory acks cannot fail
		deliver(ctx, DriverMemory, in, sub.handler, sub.autoAck)
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: now}, nil
}

// Consume subscribes handler under the channel/group/queue group name (any of
// them) and blocks until ctx is done.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	group := firstNonEmpty(co.channel, co.group, co.queueGroup, co.subscription)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.topics[source] == nil {
		m.topics[source] = map[string]memorySub{}
	}
	m.topics[source][group] = memorySub{handler: handler, autoAck: co.autoAck}
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.topics[source], group)
	m.mu.Unlock()

	return ctx.Err()
}

// Subscribed reports how many groups listen on topic.
func (m *Memory) Subscribed(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topic])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type memoryMessage struct {
	settleOnce
	id    string
	topic string
	at    time.Time
	out   OutgoingMessage
}

func (m *memoryMessage) Body() []byte         { return m.out.Body }
func (m *memoryMessage) Key() []byte          { return m.out.Key }
func (m *memoryMessage) Headers() []Header    { return m.out.Headers }
func (m *memoryMessage) ID() string           { return m.id }
func (m *memoryMessage) Topic() string        { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.at }

func (m *memoryMessage) Ack(context.Context) error {
	m.first()
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	m.first()
	return nil
}
