// Package dirlock provides directory-scoped mutual exclusion between asset
// writers and export snapshots.
package dirlock

import (
	"context"
	"sort"
	"strings"
)

// Unlock releases every key acquired by one Lock call. It is safe to call
// more than once.
type Unlock func()

// Locker acquires exclusive locks on a set of keys. Keys are acquired in
// sorted order so concurrent multi-key callers cannot deadlock. Lock blocks
// until every key is held or ctx ends.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

// AssetKey is the lock key guarding a live asset directory.
func AssetKey(dirName string) string {
	return "assets/" + dirName
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func releaseAll(releases []func()) Unlock {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
