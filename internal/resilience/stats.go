package resilience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"product-composite/internal/logger"
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeIgnored  = "ignored"
	outcomeRejected = "rejected"
)

const statsWriteTimeout = time.Second

// Stats receives call outcomes and breaker transitions. Implementations must
// be safe for concurrent use; they are called off the request path.
type Stats interface {
	RecordOutcome(ctx context.Context, dependency, outcome string)
	RecordTransition(ctx context.Context, dependency, from, to string)
}

type NopStats struct{}

func (NopStats) RecordOutcome(context.Context, string, string)            {}
func (NopStats) RecordTransition(context.Context, string, string, string) {}

// recorder hands stats writes to a single background worker through a
// bounded queue. Writes are dropped when the queue is full. A nil recorder
// discards everything.
type recorder struct {
	queue chan func(ctx context.Context)
}

const recorderQueueSize = 256

func newRecorder(stats Stats) *recorder {
	if stats == nil {
		return nil
	}
	if _, ok := stats.(NopStats); ok {
		return nil
	}
	r := &recorder{queue: make(chan func(ctx context.Context), recorderQueueSize)}
	go r.run()
	return r
}

func (r *recorder) run() {
	for fn := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), statsWriteTimeout)
		fn(ctx)
		cancel()
	}
}

// submit never blocks. It reports false when the write was dropped.
func (r *recorder) submit(fn func(ctx context.Context)) bool {
	if r == nil {
		return true
	}
	select {
	case r.queue <- fn:
		return true
	default:
		return false
	}
}

// RedisStats keeps cumulative outcome counters per dependency in a hash and
// the most recent breaker transitions in a capped list.
type RedisStats struct {
	rdb            *redis.Client
	prefix         string
	maxTransitions int64
	log            logger.Logger
	now            func() time.Time
}

type RedisStatsOption func(*RedisStats)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) { s.prefix = strings.Trim(prefix, ":") }
}

func WithMaxTransitions(n int64) RedisStatsOption {
	return func(s *RedisStats) { s.maxTransitions = n }
}

func NewRedisStats(rdb *redis.Client, log logger.Logger, opts ...RedisStatsOption) *RedisStats {
	if log == nil {
		log = logger.Nop()
	}
	s := &RedisStats{
		rdb:            rdb,
		prefix:         "composite:cb",
		maxTransitions: 100,
		log:            log,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStats) outcomesKey(dependency string) string {
	return fmt.Sprintf("%s:%s", s.prefix, dependency)
}

func (s *RedisStats) transitionsKey(dependency string) string {
	return fmt.Sprintf("%s:%s:transitions", s.prefix, dependency)
}

func (s *RedisStats) RecordOutcome(ctx context.Context, dependency, outcome string) {
	if err := s.rdb.HIncrBy(ctx, s.outcomesKey(dependency), outcome, 1).Err(); err != nil {
		s.log.Debug("failed to record breaker outcome", "dependency", dependency, "error", err)
	}
}

func (s *RedisStats) RecordTransition(ctx context.Context, dependency, from, to string) {
	key := s.transitionsKey(dependency)
	entry := fmt.Sprintf("%s %s->%s", s.now().UTC().Format(time.RFC3339), from, to)

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, s.maxTransitions-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Debug("failed to record breaker transition", "dependency", dependency, "error", err)
	}
}

// Outcomes returns the counters of one dependency.
func (s *RedisStats) Outcomes(ctx context.Context, dependency string) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.outcomesKey(dependency)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}
