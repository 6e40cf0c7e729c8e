// Package archive reads and writes the portable study/component package: a
// zip whose root holds one properties envelope (<base>.jas or <base>.jac) and
// a sibling directory <base>/ mirroring the asset tree.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
)

// DefaultIgnore lists OS metadata skipped on pack and unpack.
var DefaultIgnore = []string{"**/.DS_Store", "**/Thumbs.db", "__MACOSX/**"}

type Options struct {
	// Ignore holds doublestar patterns matched against slash-separated paths
	// relative to the asset directory (and, on unpack, to the archive root).
	Ignore []string
	// MaxUnpackedBytes caps the total extracted size. Zero means unlimited.
	MaxUnpackedBytes int64
}

type Codec struct {
	fs     afero.Fs
	ignore []string
	max    int64
}

// Unpacked describes an extracted archive.
type Unpacked struct {
	Document Document
	// Base is the archive's base name, shared by the properties entry and the
	// asset directory.
	Base string
	// AssetDir is the extracted asset tree. It always exists, possibly empty.
	AssetDir string
}

func NewCodec(fs afero.Fs, opts Options) (*Codec, error) {
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &Codec{fs: fs, ignore: ignore, max: opts.MaxUnpackedBytes}, nil
}

// ArchiveName returns the download name for a study directory.
func ArchiveName(dirName string) string {
	return assetfs.SanitizeDirName(dirName) + ZipExt
}

func (c *Codec) ignored(rel string) bool {
	for _, p := range c.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Pack writes doc and every regular file under assetDir to w. An empty
// assetDir or one that does not exist produces a properties-only archive.
func (c *Codec) Pack(w io.Writer, base string, doc Document, assetDir string) error {
	const op = "archive.pack"
	base = assetfs.SanitizeDirName(base)
	raw, err := MarshalDocument(doc)
	if err != nil {
		return transfer.NewError(transfer.CodeInternal, op, "encode properties", err)
	}

	zw := zip.NewWriter(w)
	pw, err := zw.CreateHeader(&zip.FileHeader{Name: base + doc.Ext(), Method: zip.Deflate})
	if err != nil {
		return transfer.FromFS(op, err)
	}
	if _, err := pw.Write(raw); err != nil {
		return transfer.FromFS(op, err)
	}

	if assetDir != "" {
		if err := c.packTree(zw, base, assetDir); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return transfer.FromFS(op, err)
	}
	return nil
}

func (c *Codec) packTree(zw *zip.Writer, base, assetDir string) error {
	const op = "archive.pack"
	ok, err := afero.DirExists(c.fs, assetDir)
	if err != nil {
		return transfer.FromFS(op, err)
	}
	if !ok {
		return nil
	}

	var entries []string
	infos := map[string]os.FileInfo{}
	err = afero.Walk(c.fs, assetDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == assetDir {
			return nil
		}
		rel, err := filepath.Rel(assetDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if c.ignored(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || info.Mode().IsRegular() {
			entries = append(entries, rel)
			infos[rel] = info
		}
		return nil
	})
	if err != nil {
		return transfer.FromFS(op, err)
	}
	sort.Strings(entries)

	for _, rel := range entries {
		info := infos[rel]
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return transfer.FromFS(op, err)
		}
		hdr.Name = base + "/" + rel
		if info.IsDir() {
			hdr.Name += "/"
			hdr.Method = zip.Store
			if _, err := zw.CreateHeader(hdr); err != nil {
				return transfer.FromFS(op, err)
			}
			continue
		}
		hdr.Method = zip.Deflate
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return transfer.FromFS(op, err)
		}
		if err := c.copyInto(fw, filepath.Join(assetDir, filepath.FromSlash(rel))); err != nil {
			return transfer.FromFS(op, err)
		}
	}
	return nil
}

func (c *Codec) copyInto(w io.Writer, p string) error {
	f, err := c.fs.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

var errTooLarge = errors.New("archive exceeds unpacked size limit")

// Unpack extracts the archive under destDir: the properties entry to
// destDir/<base>.<ext> and the asset tree to destDir/<base>/.
func (c *Codec) Unpack(r io.ReaderAt, size int64, destDir string) (*Unpacked, error) {
	const op = "archive.unpack"
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "not a zip archive", err)
	}

	var props *zip.File
	for _, f := range zr.File {
		name, err := entryName(f.Name)
		if err != nil {
			return nil, err
		}
		if c.ignored(name) || strings.Contains(name, "/") || f.FileInfo().IsDir() {
			continue
		}
		ext := path.Ext(name)
		if ext != StudyExt && ext != ComponentExt {
			continue
		}
		if props != nil {
			return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "archive holds more than one properties entry", nil)
		}
		props = f
	}
	if props == nil {
		return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "missing properties entry", nil)
	}

	propsName, _ := entryName(props.Name)
	ext := path.Ext(propsName)
	base := strings.TrimSuffix(propsName, ext)
	switch base {
	case "":
		return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "properties entry has an empty base name", nil)
	case ".", "..":
		return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "properties entry base name is not a directory name: "+base, nil)
	}

	budget := newSizeBudget(c.max)
	raw, err := readEntry(props, budget)
	if err != nil {
		return nil, classifyUnpack(op, err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	if doc.Ext() != ext {
		return nil, transfer.NewError(transfer.CodeCorruptArchive, op, fmt.Sprintf("%s entry holds a %s document", ext, doc.Kind), nil)
	}

	assetDir := filepath.Join(destDir, base)
	if err := c.fs.MkdirAll(assetDir, 0o755); err != nil {
		return nil, transfer.FromFS(op, err)
	}
	propsPath := filepath.Join(destDir, propsName)
	if err := afero.WriteFile(c.fs, propsPath, raw, 0o644); err != nil {
		return nil, transfer.FromFS(op, err)
	}

	prefix := base + "/"
	for _, f := range zr.File {
		if f == props {
			continue
		}
		name, _ := entryName(f.Name)
		if c.ignored(name) {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			if name+"/" == prefix {
				continue
			}
			return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "unexpected entry outside the asset directory: "+name, nil)
		}
		rel := strings.TrimPrefix(name, prefix)
		if rel == "" || c.ignored(rel) {
			continue
		}
		target := filepath.Join(assetDir, filepath.FromSlash(rel))
		if f.FileInfo().IsDir() {
			if err := c.fs.MkdirAll(target, 0o755); err != nil {
				return nil, transfer.FromFS(op, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if err := c.extractFile(f, target, budget); err != nil {
			return nil, classifyUnpack(op, err)
		}
	}

	return &Unpacked{Document: doc, Base: base, AssetDir: assetDir}, nil
}

// LoadStaged re-reads an archive previously extracted by Unpack into destDir.
func (c *Codec) LoadStaged(destDir string) (*Unpacked, error) {
	const op = "archive.load"
	infos, err := afero.ReadDir(c.fs, destDir)
	if err != nil {
		return nil, transfer.FromFS(op, err)
	}
	for _, info := range infos {
		name := info.Name()
		ext := path.Ext(name)
		if info.IsDir() || (ext != StudyExt && ext != ComponentExt) {
			continue
		}
		propsPath := filepath.Join(destDir, name)
		raw, err := afero.ReadFile(c.fs, propsPath)
		if err != nil {
			return nil, transfer.FromFS(op, err)
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(name, ext)
		return &Unpacked{
			Document: doc,
			Base:     base,
			AssetDir: filepath.Join(destDir, base),
		}, nil
	}
	return nil, transfer.NewError(transfer.CodeCorruptArchive, op, "staged properties entry missing", nil)
}

func (c *Codec) extractFile(f *zip.File, target string, budget *sizeBudget) error {
	if err := c.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := c.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if err := budget.copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func readEntry(f *zip.File, budget *sizeBudget) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if err := budget.copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sizeBudget charges extracted bytes against the unpacked size limit. Entry
// headers are not trusted; the bytes actually read are counted.
type sizeBudget struct {
	limited bool
	left    int64
}

func newSizeBudget(max int64) *sizeBudget {
	return &sizeBudget{limited: max > 0, left: max}
}

func (b *sizeBudget) copy(dst io.Writer, src io.Reader) error {
	if !b.limited {
		_, err := io.Copy(dst, src)
		return err
	}
	n, err := io.Copy(dst, io.LimitReader(src, b.left+1))
	if err != nil {
		return err
	}
	if n > b.left {
		return errTooLarge
	}
	b.left -= n
	return nil
}

func classifyUnpack(op string, err error) error {
	var te *transfer.Error
	switch {
	case errors.As(err, &te):
		return err
	case errors.Is(err, errTooLarge):
		return transfer.NewError(transfer.CodeCorruptArchive, op, err.Error(), err)
	case errors.Is(err, zip.ErrChecksum), errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, io.ErrUnexpectedEOF):
		return transfer.NewError(transfer.CodeCorruptArchive, op, err.Error(), err)
	default:
		return transfer.FromFS(op, err)
	}
}

// entryName normalizes a zip entry name and rejects anything that could
// escape the extraction root.
func entryName(raw string) (string, error) {
	name := strings.ReplaceAll(raw, `\`, "/")
	bad := func(reason string) (string, error) {
		return "", transfer.NewError(transfer.CodeCorruptArchive, "archive.unpack", fmt.Sprintf("%s: %q", reason, raw), nil)
	}
	if name == "" {
		return bad("empty entry name")
	}
	if strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return bad("absolute entry name")
	}
	for _, part := range strings.Split(strings.TrimSuffix(name, "/"), "/") {
		if part == ".." {
			return bad("entry escapes archive root")
		}
	}
	clean := path.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "../") {
		return bad("entry escapes archive root")
	}
	return clean, nil
}
