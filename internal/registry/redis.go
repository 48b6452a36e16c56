package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// presenceTTL bounds how long a stale set survives a crashed relay.
	presenceTTL = 24 * time.Hour

	redisTimeout = 2 * time.Second

	// mirrorQueueSize is how many changes may wait for Redis before new
	// ones are dropped.
	mirrorQueueSize = 256
)

// RedisOptions configures the presence mirror.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisMirror publishes room occupancy to Redis sets keyed
// "room:<id>:peers", with each participant stored as a hash entry under
// "room:<id>:names" so dashboards can show display names.
//
// Added and Removed only queue the change; one goroutine writes them to
// Redis in order. When Redis falls behind, changes are dropped with a
// warning and the TTL eventually clears what was left stale.
type RedisMirror struct {
	client  *redis.Client
	updates chan change

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewRedisMirror connects to Redis, verifies the connection and starts the
// writer goroutine.
func NewRedisMirror(ctx context.Context, opts RedisOptions) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m := newRedisMirror(client)
	go m.run()
	return m, nil
}

func newRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		client:  client,
		updates: make(chan change, mirrorQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func peersKey(roomID string) string { return "room:" + roomID + ":peers" }
func namesKey(roomID string) string { return "room:" + roomID + ":names" }

// Added queues a participant joining a room.
func (m *RedisMirror) Added(roomID string, p Participant) {
	m.enqueue(change{roomID: roomID, participant: p, added: true})
}

// Removed queues a participant leaving a room.
func (m *RedisMirror) Removed(roomID string, participantID string) {
	m.enqueue(change{roomID: roomID, participant: Participant{ID: participantID}})
}

func (m *RedisMirror) enqueue(c change) {
	select {
	case <-m.done:
		return
	default:
	}

	select {
	case m.updates <- c:
	default:
		slog.Warn("presence mirror: queue full, dropping change",
			"room", c.roomID, "participant", c.participant.ID, "added", c.added)
	}
}

func (m *RedisMirror) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.done:
			return
		case c := <-m.updates:
			if c.added {
				m.add(c.roomID, c.participant)
			} else {
				m.remove(c.roomID, c.participant.ID)
			}
		}
	}
}

func (m *RedisMirror) add(roomID string, p Participant) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	info, err := json.Marshal(p)
	if err != nil {
		slog.Warn("presence mirror: marshal participant", "error", err)
		return
	}

	pipe := m.client.TxPipeline()
	pipe.SAdd(ctx, peersKey(roomID), p.ID)
	pipe.HSet(ctx, namesKey(roomID), p.ID, info)
	pipe.Expire(ctx, peersKey(roomID), presenceTTL)
	pipe.Expire(ctx, namesKey(roomID), presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("presence mirror: add failed", "room", roomID, "participant", p.ID, "error", err)
	}
}

func (m *RedisMirror) remove(roomID string, participantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	pipe := m.client.TxPipeline()
	pipe.SRem(ctx, peersKey(roomID), participantID)
	pipe.HDel(ctx, namesKey(roomID), participantID)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("presence mirror: remove failed", "room", roomID, "participant", participantID, "error", err)
	}
}

// Close stops the writer and closes the Redis connection. Queued changes
// that have not been written are dropped.
func (m *RedisMirror) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	<-m.stopped
	return m.client.Close()
}
