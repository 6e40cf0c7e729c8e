package assetfs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
)

// Swap is an applied directory replacement awaiting Commit or Rollback.
// Until Commit the previous contents are kept under hidden retired names.
type Swap struct {
	store   *Store
	target  string
	retired []retiredDir
	done    bool
}

type retiredDir struct {
	from string
	to   string
}

// Replace makes dirName hold exactly the staged tree at src. currentName is
// the directory the record owns today; it is retired along with anything
// already occupying dirName. The staged tree is fully copied before any live
// directory is moved, so a copy failure leaves the live tree untouched.
func (s *Store) Replace(ctx context.Context, src, currentName, dirName, token string) (*Swap, error) {
	target, err := s.Path(dirName)
	if err != nil {
		return nil, err
	}
	var current string
	if currentName != "" {
		if current, err = s.Path(currentName); err != nil {
			return nil, err
		}
	}

	incoming, err := s.copyIncoming(ctx, src, token)
	if err != nil {
		return nil, err
	}

	sw := &Swap{store: s, target: target}
	candidates := []string{current}
	if target != current {
		candidates = append(candidates, target)
	}
	for i, p := range candidates {
		if p == "" {
			continue
		}
		ok, err := afero.Exists(s.fs, p)
		if err != nil {
			_ = s.fs.RemoveAll(incoming)
			return nil, sw.abort(transfer.FromFS("assetfs.replace", err))
		}
		if !ok {
			continue
		}
		dst := filepath.Join(s.root, fmt.Sprintf("%s%s-%d", retiredPrefix, token, i))
		if err := s.fs.Rename(p, dst); err != nil {
			_ = s.fs.RemoveAll(incoming)
			return nil, sw.abort(transfer.FromFS("assetfs.replace", err))
		}
		sw.retired = append(sw.retired, retiredDir{from: p, to: dst})
	}

	if err := s.fs.Rename(incoming, target); err != nil {
		_ = s.fs.RemoveAll(incoming)
		return nil, sw.abort(transfer.FromFS("assetfs.replace", err))
	}
	return sw, nil
}

// abort restores retired directories after a failure inside Replace.
func (sw *Swap) abort(cause error) error {
	if rbErr := sw.restore(); rbErr != nil {
		return transfer.MarkReconcile(cause)
	}
	return cause
}

// Commit discards the retired directories.
func (sw *Swap) Commit() error {
	if sw == nil || sw.done {
		return nil
	}
	sw.done = true
	var firstErr error
	for _, r := range sw.retired {
		if err := sw.store.fs.RemoveAll(r.to); err != nil && firstErr == nil {
			firstErr = transfer.FromFS("assetfs.commit", err)
		}
	}
	return firstErr
}

// Rollback removes the new directory and puts the retired ones back.
func (sw *Swap) Rollback() error {
	if sw == nil || sw.done {
		return nil
	}
	sw.done = true
	if err := sw.store.fs.RemoveAll(sw.target); err != nil {
		return transfer.FromFS("assetfs.rollback", err)
	}
	return sw.restore()
}

func (sw *Swap) restore() error {
	for i := len(sw.retired) - 1; i >= 0; i-- {
		r := sw.retired[i]
		if err := sw.store.fs.Rename(r.to, r.from); err != nil {
			return transfer.FromFS("assetfs.rollback", err)
		}
	}
	sw.retired = nil
	return nil
}
