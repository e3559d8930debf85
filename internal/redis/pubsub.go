package redisx

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/tably/tably-go/internal/domain"
)

// SeatUpdatesPubSub mirrors seat-update events onto a redis channel. It is a
// best-effort side channel for external observers; in-process subscribers get
// their events straight from the broadcast hub.
type SeatUpdatesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewSeatUpdatesPubSub(rdb *redis.Client) *SeatUpdatesPubSub {
	return &SeatUpdatesPubSub{
		rdb:     rdb,
		channel: ChannelSeatUpdates(),
	}
}

func (p *SeatUpdatesPubSub) PublishSeatUpdate(ctx context.Context, ev domain.SeatUpdateEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe delivers mirrored seat updates to handler until ctx is done.
func (p *SeatUpdatesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev domain.SeatUpdateEvent)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.SeatUpdateEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && len(ev.TableIDs) > 0 {
				handler(ctx, ev)
			}
		}
	}
}
