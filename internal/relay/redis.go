// Package relay shares dashboard events between instances over Redis pub/sub
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eientei/guildpanel/internal/hub"
	"github.com/go-redis/redis/v7"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Redis publishes events to a channel and feeds received ones into local broadcaster
type Redis struct {
	client     *redis.Client
	local      hub.Broadcaster
	log        *logrus.Logger
	clock      clockwork.Clock
	subscribed atomic.Bool
	channel    string
}

// NewRedis returns relay instance, nil clock means real time
func NewRedis(
	client *redis.Client,
	channel string,
	local hub.Broadcaster,
	log *logrus.Logger,
	clock clockwork.Clock,
) *Redis {
	if log == nil {
		log = logrus.New()
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Redis{
		client:  client,
		channel: channel,
		local:   local,
		log:     log,
		clock:   clock,
	}
}

// Subscribed reports whether events published to the channel currently reach local clients
func (r *Redis) Subscribed() bool {
	return r.subscribed.Load()
}

// Broadcast publishes event; while not subscribed, or when publishing fails, event is delivered locally
func (r *Redis) Broadcast(event hub.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		r.log.WithError(err).Error("Marshaling event")
		return
	}

	err = r.client.Publish(r.channel, data).Err()
	if err != nil {
		r.log.WithError(err).WithField("channel", r.channel).Warn("Publishing event, delivering locally")
		r.local.Broadcast(event)

		return
	}

	if !r.Subscribed() {
		r.local.Broadcast(event)
	}
}

// Run keeps channel subscription alive and relays events until context is done
func (r *Redis) Run(ctx context.Context) error {
	backoff := minBackoff

	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil {
			backoff = minBackoff
		}

		entry := r.log.WithField("retry", backoff)
		if err != nil {
			entry = entry.WithError(err)
		}

		entry.Warn("Relay not subscribed, delivering locally")

		select {
		case <-ctx.Done():
			return nil
		case <-r.clock.After(backoff):
		}

		if err != nil {
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

func (r *Redis) subscribe(ctx context.Context) error {
	ps := r.client.WithContext(ctx).Subscribe(r.channel)
	defer func() {
		r.subscribed.Store(false)
		_ = ps.Close()
	}()

	if _, err := ps.Receive(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	r.subscribed.Store(true)
	r.log.WithField("channel", r.channel).Info("Relaying events")

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			event, err := decode(msg.Payload)
			if err != nil {
				r.log.WithError(err).Warn("Decoding relayed event")
				continue
			}

			r.local.Broadcast(event)
		}
	}
}

func decode(payload string) (event hub.Event, err error) {
	err = json.Unmarshal([]byte(payload), &event)
	if err != nil {
		return event, err
	}

	if event.Type == "" {
		return event, fmt.Errorf("event without type: %q", payload)
	}

	return event, nil
}
