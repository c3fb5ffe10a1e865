// Package archive packs a cloud code source tree into the tarball that gets
// uploaded, and computes the checksums the controller keys artifacts on.
//
// Archives are reproducible: the same tree with the same ignore rules yields
// the same bytes on every run and every machine, so the checksums can be
// used to deduplicate artifacts.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/elly0t/skycli/cli/apperr"
)

const (
	DefaultIgnoreFile = ".skyignore"
	defaultFileName   = "skygear-src.tgz"
)

// Every entry is stamped with the epoch so file mtimes never leak into the
// archive bytes.
var portableModTime = time.Unix(0, 0)

// DefaultPath is the fixed location the archive is written to. Each deploy
// overwrites it.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), defaultFileName)
}

type Result struct {
	Path  string
	Files []string // slash separated, relative to the source root, sorted
	Size  int64
}

// Create archives src into dest as a gzipped tarball. Files matched by an
// ignore file named ignoreName (in src or any directory below it) are left
// out. dest is replaced atomically once the archive is fully written.
func Create(src, ignoreName, dest string) (*Result, error) {
	root, err := filepath.Abs(src)
	if err != nil {
		return nil, apperr.IO("archive", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, apperr.IO("archive", err)
	}
	if !info.IsDir() {
		return nil, apperr.IO("archive", fmt.Errorf("%s is not a directory", src))
	}

	dest, err = filepath.Abs(dest)
	if err != nil {
		return nil, apperr.IO("archive", err)
	}
	tmp := dest + ".tmp"

	files, err := collect(root, ignoreName, dest, tmp)
	if err != nil {
		return nil, apperr.IO("archive", err)
	}

	if err := write(root, files, tmp); err != nil {
		os.Remove(tmp)
		return nil, apperr.IO("archive", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return nil, apperr.IO("archive", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, apperr.IO("archive", err)
	}
	return &Result{Path: dest, Files: files, Size: stat.Size()}, nil
}

// collect walks root and returns the relative paths to archive.
func collect(root, ignoreName string, exclude ...string) ([]string, error) {
	rules := ignoreRules{}
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && rules.ignored(root, path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return rules.load(path, ignoreName)
		}
		// The ignore files configure the archive; they are not part of it.
		if d.Name() == ignoreName {
			return nil
		}
		for _, ex := range exclude {
			if path == ex {
				return nil
			}
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// WalkDir sorts per directory; "a.txt" and "a/b" still need a global order.
	sort.Strings(files)
	return files, nil
}

// ignoreRules holds the parsed ignore file of every directory visited so far,
// keyed by directory.
type ignoreRules map[string]gitignore.IgnoreMatcher

func (r ignoreRules) load(dir, ignoreName string) error {
	if ignoreName == "" {
		return nil
	}
	f, err := os.Open(filepath.Join(dir, ignoreName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	r[dir] = gitignore.NewGitIgnoreFromReader(dir, f)
	return nil
}

// ignored checks path against the ignore file of each ancestor directory up
// to root.
func (r ignoreRules) ignored(root, path string, isDir bool) bool {
	dir := filepath.Dir(path)
	for {
		if m, ok := r[dir]; ok && m.Match(path, isDir) {
			return true
		}
		if dir == root {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func write(root string, files []string, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		if err := writeEntry(tw, root, rel); err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}

func writeEntry(tw *tar.Writer, root, rel string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    rel,
		Mode:    portableMode(info.Mode()),
		ModTime: portableModTime,
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = filepath.ToSlash(target)
		return tw.WriteHeader(hdr)
	}

	hdr.Typeflag = tar.TypeReg
	hdr.Size = info.Size()
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)
	return err
}

// portableMode keeps only the executable bit, so umask differences between
// machines do not change the archive.
func portableMode(m fs.FileMode) int64 {
	if m.Perm()&0o111 != 0 {
		return 0o755
	}
	return 0o644
}
