// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calico32/cardgame/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list room events are pushed to.
const DefaultQueueName = "cardgame_room_events"

const publishTimeout = 2 * time.Second

// ConnectRedis opens a client for addr and checks it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RoomJournal pushes every room event onto a Redis list for consumers outside this process.
// Record never blocks a room: events are queued in memory and dropped when the queue is full.
type RoomJournal struct {
	rdb    *redis.Client
	queue  string
	events chan models.RoomEvent
	log    logrus.FieldLogger
}

// NewRoomJournal returns a journal buffering up to size events. Call Run to start publishing.
func NewRoomJournal(rdb *redis.Client, queue string, size int, logger logrus.FieldLogger) *RoomJournal {
	if queue == "" {
		queue = DefaultQueueName
	}
	if size <= 0 {
		size = 1024
	}
	return &RoomJournal{
		rdb:    rdb,
		queue:  queue,
		events: make(chan models.RoomEvent, size),
		log:    logger.WithField("queue", queue),
	}
}

// Record queues ev for publishing.
func (j *RoomJournal) Record(ev models.RoomEvent) {
	select {
	case j.events <- ev:
	default:
		j.log.WithFields(logrus.Fields{"room": ev.RoomID, "seq": ev.Seq}).Warn("Journal queue full, dropped event")
	}
}

// Run publishes queued events until ctx is cancelled, then flushes whatever is still queued.
// Each push gets its own deadline, so an event picked up after ctx is done is still published.
func (j *RoomJournal) Run(ctx context.Context) {
	for {
		select {
		case ev := <-j.events:
			j.publish(ev)
		case <-ctx.Done():
			j.drain()
			return
		}
	}
}

func (j *RoomJournal) drain() {
	for {
		select {
		case ev := <-j.events:
			j.publish(ev)
		default:
			return
		}
	}
}

func (j *RoomJournal) publish(ev models.RoomEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := PublishRoomEvent(ctx, j.rdb, j.queue, ev); err != nil {
		j.log.WithError(err).Warn("Failed to publish room event")
	}
}

// PublishRoomEvent serializes ev to JSON and pushes it to the tail of queue.
func PublishRoomEvent(ctx context.Context, rdb *redis.Client, queue string, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	if err := rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queue, err)
	}
	return nil
}
