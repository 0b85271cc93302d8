package coordination

import (
	"context"
	"sync"

	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// LogBus carries "something changed for this match" hints. Payloads are
// empty; subscribers re-read the database. Hints may be dropped or coalesced.
type LogBus interface {
	Publish(ctx context.Context, matchID string) error
	Subscribe(ctx context.Context, matchID string) (Subscription, error)
}

// Subscription delivers coalesced hints on C until Close.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

func matchChannel(matchID string) string {
	return "match:" + matchID + ":log"
}

// RedisLogBus fans hints out over Redis pub/sub so every replica streaming a
// match hears about new rows written by the simulator.
type RedisLogBus struct {
	rdb *redis.Client
}

func NewRedisLogBus(rdb *redis.Client) *RedisLogBus {
	return &RedisLogBus{rdb: rdb}
}

func (b *RedisLogBus) Publish(ctx context.Context, matchID string) error {
	if err := b.rdb.Publish(ctx, matchChannel(matchID), "").Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to publish match hint")
	}
	return nil
}

func (b *RedisLogBus) Subscribe(ctx context.Context, matchID string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, matchChannel(matchID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to subscribe to match hints")
	}

	sub := &redisSubscription{ps: ps, c: make(chan struct{}, 1), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	c    chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) forward() {
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.c <- struct{}{}:
			default:
			}
		}
	}
}

func (s *redisSubscription) C() <-chan struct{} { return s.c }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// LocalLogBus is the in-process bus used without Redis.
type LocalLogBus struct {
	mu   sync.Mutex
	subs map[string]map[*localSubscription]struct{}
}

func NewLocalLogBus() *LocalLogBus {
	return &LocalLogBus{subs: make(map[string]map[*localSubscription]struct{})}
}

func (b *LocalLogBus) Publish(_ context.Context, matchID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[matchID] {
		select {
		case sub.c <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *LocalLogBus) Subscribe(_ context.Context, matchID string) (Subscription, error) {
	sub := &localSubscription{bus: b, matchID: matchID, c: make(chan struct{}, 1)}

	b.mu.Lock()
	if b.subs[matchID] == nil {
		b.subs[matchID] = make(map[*localSubscription]struct{})
	}
	b.subs[matchID][sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

type localSubscription struct {
	bus     *LocalLogBus
	matchID string
	c       chan struct{}
}

func (s *localSubscription) C() <-chan struct{} { return s.c }

func (s *localSubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subs[s.matchID], s)
	if len(s.bus.subs[s.matchID]) == 0 {
		delete(s.bus.subs, s.matchID)
	}
	return nil
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid REDIS_URL")
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "redis unreachable")
	}

	logger.Info("Redis connected", "addr", opts.Addr)
	return rdb, nil
}
