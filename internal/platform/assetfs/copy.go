package assetfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// CopyTree copies every directory and regular file under src into dst,
// creating dst. File contents are copied by up to workers goroutines.
func CopyTree(ctx context.Context, srcFs afero.Fs, src string, dstFs afero.Fs, dst string, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	type job struct {
		from string
		to   string
		mode os.FileMode
	}
	var jobs []job

	err := afero.Walk(srcFs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return dstFs.MkdirAll(target, 0o755)
		case info.Mode().IsRegular():
			jobs = append(jobs, job{from: p, to: target, mode: info.Mode().Perm()})
		}
		return nil
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return copyFile(srcFs, j.from, dstFs, j.to, j.mode)
		})
	}
	return g.Wait()
}

func copyFile(srcFs afero.Fs, from string, dstFs afero.Fs, to string, mode os.FileMode) error {
	in, err := srcFs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	if mode == 0 {
		mode = 0o644
	}
	out, err := dstFs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ListFiles returns the slash-separated relative paths of every regular file
// under dir, sorted. A missing dir yields an empty list.
func ListFiles(fsys afero.Fs, dir string) ([]string, error) {
	ok, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	var out []string
	err = afero.Walk(fsys, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
