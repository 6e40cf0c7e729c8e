package dirlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

const redisPollInterval = 50 * time.Millisecond

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds locks as expiring keys so a crashed holder cannot block others
// past ttl. Release only deletes a key still carrying this holder's token.
type Redis struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

func NewRedis(rdb *goredis.Client, ttl time.Duration, baseLog *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "studyport:lock:",
		log:    baseLog.With("service", "RedisDirLock"),
	}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	token := uuid.NewString()
	var releases []func()
	for _, key := range normalizeKeys(keys) {
		release, err := r.lockOne(ctx, r.prefix+key, token)
		if err != nil {
			releaseAll(releases)()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll(releases), nil
}

func (r *Redis) lockOne(ctx context.Context, key, token string) (func(), error) {
	ticker := time.NewTicker(redisPollInterval)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil {
					r.log.Warn("redis lock release failed", "key", key, "error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
