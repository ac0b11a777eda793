package runstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/park285/position-analyzer/internal/stats"
	"github.com/redis/go-redis/v9"
)

const ttlRun = 24 * time.Hour

// RedisPublisher mirrors run progress into the hash analyzer:run:<id>.
type RedisPublisher struct {
	rdb   *redis.Client
	runID string
	meta  map[string]string
}

func NewRedisPublisher(rdb *redis.Client, runID string, meta map[string]string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, runID: runID, meta: meta}
}

// NewRedisClient parses a redis:// or rediss:// URL and pings the server.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func RunKey(runID string) string { return "analyzer:run:" + strings.TrimSpace(runID) }

func (p *RedisPublisher) Publish(ctx context.Context, snap stats.Snapshot) error {
	fields := map[string]any{
		"total":      snap.Total,
		"processed":  snap.Processed,
		"written":    snap.Written,
		"errors":     snap.Errors,
		"rate":       strconv.FormatFloat(snap.Rate, 'f', 2, 64),
		"elapsed_ms": snap.Elapsed.Milliseconds(),
		"state":      state(snap),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for reason, n := range snap.ByReason {
		fields["errors:"+string(reason)] = n
	}
	for k, v := range p.meta {
		fields[k] = v
	}

	key := RunKey(p.runID)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttlRun)
	_, err := pipe.Exec(ctx)
	return err
}

func state(s stats.Snapshot) string {
	if s.Done() {
		return "done"
	}
	return "running"
}
