package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// VoyagesPubSub broadcasts that a voyage's seats or schedule changed, so other
// instances can drop their cached copies.
type VoyagesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewVoyagesPubSub(rdb *redis.Client) *VoyagesPubSub {
	return &VoyagesPubSub{
		rdb:     rdb,
		channel: ChannelVoyagesChanged(),
	}
}

type voyageChangedMsg struct {
	Type     string `json:"type"`
	VoyageID int64  `json:"voyage_id"`
	TsUnix   int64  `json:"ts_unix"`
}

func (p *VoyagesPubSub) PublishVoyageChanged(ctx context.Context, voyageID int64) error {
	msg := voyageChangedMsg{
		Type:     "voyage_changed",
		VoyageID: voyageID,
		TsUnix:   time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *VoyagesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, voyageID int64)) error {
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
			var ev voyageChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.VoyageID != 0 {
				handler(ctx, ev.VoyageID)
			}
		}
	}
}

// NotificationPublisher fans user notifications out on a redis channel.
type NotificationPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewNotificationPublisher(rdb *redis.Client) *NotificationPublisher {
	return &NotificationPublisher{
		rdb:     rdb,
		channel: ChannelNotifications(),
	}
}

func (p *NotificationPublisher) Publish(ctx context.Context, body []byte) error {
	return p.rdb.Publish(ctx, p.channel, body).Err()
}
