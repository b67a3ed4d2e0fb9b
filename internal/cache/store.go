package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/datacache/internal/cachekey"
	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/fileutil"
)

/*
Store owns the cache directory layout.

Layout
- One flat directory
- <digest><ext> for published entries
- <digest>.lock for cross-process guards
- .<name>.tmp-* for in-flight downloads

The filesystem is the only source of truth: an entry exists exactly when
its file exists. There is no index to drift out of sync, so listing and
existence checks go straight to the directory.
*/

type Store struct {
	dir string
}

func NewStore(dir string) Store {
	return Store{
		dir: dir,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Ensure creates the cache directory if it does not exist yet.
func (s *Store) Ensure() failure.ClassifiedError {
	if err := fileutil.EnsureDir(s.dir); err != nil {
		return &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseCreateDirFailed,
			Path:      s.dir,
		}
	}
	return nil
}

func (s *Store) PathFor(key cachekey.Key) string {
	return filepath.Join(s.dir, key.Filename())
}

func (s *Store) LockPathFor(key cachekey.Key) string {
	return filepath.Join(s.dir, key.LockName())
}

// Has reports whether a published entry exists for the key. Only a regular
// file counts; anything else at the entry path is treated as absent.
func (s *Store) Has(key cachekey.Key) (bool, failure.ClassifiedError) {
	info, err := os.Stat(s.PathFor(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseStatFailed,
			Path:      s.PathFor(key),
		}
	}
	return info.Mode().IsRegular(), nil
}

// Entries lists published entries in filename order. Lock files and
// in-flight temp files are not entries.
func (s *Store) Entries() ([]Entry, failure.ClassifiedError) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseListFailed,
			Path:      s.dir,
		}
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || isHiddenName(name) || isLockName(name) {
			continue
		}
		info, infoErr := dirEntry.Info()
		if infoErr != nil {
			// Entry disappeared between list and stat
			continue
		}
		entries = append(entries, Entry{
			name:      name,
			path:      filepath.Join(s.dir, name),
			sizeBytes: info.Size(),
			modTime:   info.ModTime(),
		})
	}
	return entries, nil
}

// Invalidate removes the entry for the key. A missing entry is not an error.
func (s *Store) Invalidate(key cachekey.Key) failure.ClassifiedError {
	return fileutil.RemoveIfExists(s.PathFor(key))
}

// InvalidateName removes one entry by its filename, for callers that hold a
// listed name rather than a derived key. The name must be a plain basename;
// anything that could escape the cache directory is rejected.
func (s *Store) InvalidateName(name string) failure.ClassifiedError {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return &StoreError{
			Message:   "entry name must be a plain filename",
			Retryable: false,
			Cause:     ErrCauseBadEntryName,
			Path:      name,
		}
	}
	return fileutil.RemoveIfExists(filepath.Join(s.dir, name))
}

// Clear removes every published entry and lock file, and reports how many
// entries were removed. In-flight temp files are left for their writers.
func (s *Store) Clear() (int, failure.ClassifiedError) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseListFailed,
			Path:      s.dir,
		}
	}

	removed := 0
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || isHiddenName(name) {
			continue
		}
		if removeErr := fileutil.RemoveIfExists(filepath.Join(s.dir, name)); removeErr != nil {
			return removed, removeErr
		}
		if !isLockName(name) {
			removed++
		}
	}
	return removed, nil
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isLockName(name string) bool {
	return strings.HasSuffix(name, ".lock")
}
