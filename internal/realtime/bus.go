// Package realtime fans out collaborative editing traffic over Redis
// pub/sub: CRDT update broadcasts and presence/awareness pings, both keyed
// by scene.
package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// subscriberBuffer bounds each subscription's delivery channel. A slow
// consumer loses its oldest pending events; the publisher never blocks.
const subscriberBuffer = 64

type Event struct {
	Channel string
	Payload []byte
}

type Bus struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewBus(rdb *redis.Client, log *logger.Logger) *Bus {
	return &Bus{rdb: rdb, log: log.With("service", "RealtimeBus")}
}

func UpdatesChannel(sceneID uuid.UUID) string {
	return "scene:" + sceneID.String() + ":updates"
}

func AwarenessChannel(sceneID uuid.UUID) string {
	return "scene:" + sceneID.String() + ":awareness"
}

// PublishUpdate broadcasts an appended CRDT update to every open editor of
// the scene.
func (b *Bus) PublishUpdate(ctx context.Context, sceneID uuid.UUID, payload []byte) error {
	return b.rdb.Publish(ctx, UpdatesChannel(sceneID), payload).Err()
}

// PublishAwareness broadcasts cursor and presence state. Best effort; lost
// awareness pings are replaced by the next one.
func (b *Bus) PublishAwareness(ctx context.Context, sceneID uuid.UUID, payload []byte) error {
	return b.rdb.Publish(ctx, AwarenessChannel(sceneID), payload).Err()
}

type Subscription struct {
	ps  *redis.PubSub
	ch  chan Event
	log *logger.Logger
}

// Subscribe opens a bounded subscription on the given channels. The
// returned events channel closes when the subscription is closed or the
// context ends.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &Subscription{
		ps:  ps,
		ch:  make(chan Event, subscriberBuffer),
		log: b.log,
	}
	go s.pump(ctx)
	return s, nil
}

// Events delivers in publish order, minus anything dropped while the
// consumer lagged.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.ch)
	src := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.ps.Close()
			return
		case msg, ok := <-src:
			if !ok {
				return
			}
			s.deliver(Event{Channel: msg.Channel, Payload: []byte(msg.Payload)})
		}
	}
}

// deliver enqueues without blocking. When the buffer is full the oldest
// pending event is discarded to make room.
func (s *Subscription) deliver(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case dropped := <-s.ch:
		s.log.Warn("subscriber lagging, dropped oldest event", "channel", dropped.Channel)
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}
