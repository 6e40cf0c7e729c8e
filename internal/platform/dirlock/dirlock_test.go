package dirlock

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"assets/b", " ", "assets/a", "assets/b"})
	want := []string{"assets/a", "assets/b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalizeKeys: got=%v want=%v", got, want)
	}
}

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l
}

func TestLocalLockIsExclusive(t *testing.T) {
	exerciseExclusive(t, newLocal(t))
}

func TestLocalLockHonorsContext(t *testing.T) {
	l := newLocal(t)
	unlock, err := l.Lock(context.Background(), AssetKey("demo"))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, AssetKey("demo")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// other keys stay available
	other, err := l.Lock(context.Background(), AssetKey("other"))
	if err != nil {
		t.Fatalf("Lock(other): %v", err)
	}
	other()
}

func TestLocalUnlockTwice(t *testing.T) {
	l := newLocal(t)
	unlock, err := l.Lock(context.Background(), AssetKey("a"), AssetKey("b"))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
	unlock()
	again, err := l.Lock(context.Background(), AssetKey("b"), AssetKey("a"))
	if err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
	again()
}

func TestRedisLockIsExclusive(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis lock tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseExclusive(t, NewRedis(rdb, time.Minute, logger.Nop()))
}

func exerciseExclusive(t *testing.T, l Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), AssetKey("shared"))
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
}
