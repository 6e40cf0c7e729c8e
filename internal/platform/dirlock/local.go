package dirlock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

const flockRetryDelay = 25 * time.Millisecond

// Local serializes holders within this process through per-key semaphores and
// across processes on the same host through flock files under dir.
type Local struct {
	dir string
	log *logger.Logger

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal(dir string, baseLog *logger.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}
	return &Local{
		dir:   dir,
		log:   baseLog.With("service", "LocalDirLock"),
		slots: map[string]chan struct{}{},
	}, nil
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *Local) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(l.dir, hex.EncodeToString(sum[:8])+".lock")
}

func (l *Local) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	var releases []func()
	for _, key := range normalizeKeys(keys) {
		release, err := l.lockOne(ctx, key)
		if err != nil {
			releaseAll(releases)()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll(releases), nil
}

func (l *Local) lockOne(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
	}

	fl := flock.New(l.lockPath(key))
	locked, err := fl.TryLockContext(ctx, flockRetryDelay)
	if err != nil || !locked {
		<-ch
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			l.log.Warn("flock unlock failed", "key", key, "error", err)
		}
		<-ch
	}, nil
}
