package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/studyport-backend/internal/clients/redis"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
	"github.com/yungbote/studyport-backend/internal/platform/objectstore"
)

type Clients struct {
	Redis *goredis.Client
	Locks dirlock.Locker
	Sink  objectstore.Sink
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	switch strings.ToLower(strings.TrimSpace(cfg.LockBackend)) {
	case "", LockBackendLocal:
		locks, err := dirlock.NewLocal(cfg.LockDir, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init local locks: %w", err)
		}
		out.Locks = locks
	case LockBackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Locks = dirlock.NewRedis(rdb, cfg.LockTTL, log)
	default:
		return Clients{}, fmt.Errorf("unsupported LOCK_BACKEND %q", cfg.LockBackend)
	}

	sink, err := objectstore.New(ctx, cfg.Export, log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init export sink: %w", err)
	}
	out.Sink = sink
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
