// Package assetfs manages live study asset directories beneath a single
// assets root.
package assetfs

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type Store struct {
	fs      afero.Fs
	root    string
	workers int
	log     *logger.Logger
}

func NewStore(fs afero.Fs, root string, workers int, baseLog *logger.Logger) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, transfer.FromFS("assetfs.init", err)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Store{
		fs:      fs,
		root:    filepath.Clean(root),
		workers: workers,
		log:     baseLog.With("service", "AssetStore"),
	}, nil
}

func (s *Store) Fs() afero.Fs { return s.fs }

func (s *Store) Root() string { return s.root }

func (s *Store) Workers() int { return s.workers }

// Path resolves dirName to its absolute location under the root.
func (s *Store) Path(dirName string) (string, error) {
	if err := validateDirName(dirName); err != nil {
		return "", transfer.NewError(transfer.CodeBadRequest, "assetfs.path", err.Error(), err)
	}
	return filepath.Join(s.root, dirName), nil
}

func (s *Store) Exists(dirName string) (bool, error) {
	p, err := s.Path(dirName)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, transfer.FromFS("assetfs.exists", err)
	}
	return ok, nil
}

// List returns the sorted relative paths of every file in the live directory.
func (s *Store) List(dirName string) ([]string, error) {
	p, err := s.Path(dirName)
	if err != nil {
		return nil, err
	}
	out, err := ListFiles(s.fs, p)
	if err != nil {
		return nil, transfer.FromFS("assetfs.list", err)
	}
	return out, nil
}

// Promote copies a staged tree into a new live directory. The copy lands in a
// hidden sibling first and is renamed into place, so a partial copy is never
// visible under dirName.
func (s *Store) Promote(ctx context.Context, src, dirName, token string) error {
	target, err := s.Path(dirName)
	if err != nil {
		return err
	}
	exists, err := afero.Exists(s.fs, target)
	if err != nil {
		return transfer.FromFS("assetfs.promote", err)
	}
	if exists {
		return transfer.NewError(transfer.CodeConflict, "assetfs.promote", "asset directory already exists: "+dirName, nil)
	}
	incoming, err := s.copyIncoming(ctx, src, token)
	if err != nil {
		return err
	}
	if err := s.fs.Rename(incoming, target); err != nil {
		_ = s.fs.RemoveAll(incoming)
		return transfer.FromFS("assetfs.promote", err)
	}
	s.log.Debug("Promoted staged assets", "dir_name", dirName)
	return nil
}

// Remove deletes a live directory. A missing directory is not an error.
func (s *Store) Remove(dirName string) error {
	p, err := s.Path(dirName)
	if err != nil {
		return err
	}
	if err := s.fs.RemoveAll(p); err != nil {
		return transfer.FromFS("assetfs.remove", err)
	}
	return nil
}

// copyIncoming fails when src is gone, so a vanished staging tree never
// replaces live assets with an empty directory.
func (s *Store) copyIncoming(ctx context.Context, src, token string) (string, error) {
	ok, err := afero.DirExists(s.fs, src)
	if err != nil {
		return "", transfer.FromFS("assetfs.copy", err)
	}
	if !ok {
		return "", transfer.NewError(transfer.CodeIO, "assetfs.copy", "staged asset tree missing", nil)
	}
	incoming := filepath.Join(s.root, incomingPrefix+token)
	_ = s.fs.RemoveAll(incoming)
	if err := s.fs.MkdirAll(incoming, 0o755); err != nil {
		return "", transfer.FromFS("assetfs.copy", err)
	}
	if err := CopyTree(ctx, s.fs, src, s.fs, incoming, s.workers); err != nil {
		_ = s.fs.RemoveAll(incoming)
		return "", transfer.FromFS("assetfs.copy", err)
	}
	return incoming, nil
}
