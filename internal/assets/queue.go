// Package assets provides the consumable intake queue the scheduler draws
// media files from, and the caption builders for each profile family.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"postline/internal/types"
)

// FileQueue is a directory of ready-to-publish media files. Selection takes
// the newest n files by modification time and returns them oldest first, so
// a day's batch goes out in production order. Consumption moves a file into
// the used directory; a consumed file can never be selected again.
type FileQueue struct {
	dir     string
	usedDir string
	prefix  string
	ext     string
}

// NewFileQueue builds a queue from a profile's source configuration. When
// UsedDir is empty it defaults to a "used" subdirectory of the intake dir.
func NewFileQueue(cfg types.AssetSourceConfig) *FileQueue {
	usedDir := cfg.UsedDir
	if usedDir == "" {
		usedDir = filepath.Join(cfg.Dir, "used")
	}
	return &FileQueue{
		dir:     cfg.Dir,
		usedDir: usedDir,
		prefix:  cfg.Prefix,
		ext:     cfg.Ext,
	}
}

type queueEntry struct {
	path    string
	modTime time.Time
}

// Ready returns up to n matching file paths: the n most recently produced,
// ordered oldest first. Fewer than n matches is not an error here; callers
// that need an exact count enforce it themselves.
func (q *FileQueue) Ready(n int) ([]string, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("reading intake dir %s: %w", q.dir, err)
	}

	var matches []queueEntry
	for _, e := range entries {
		if e.IsDir() || !q.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		matches = append(matches, queueEntry{
			path:    filepath.Join(q.dir, e.Name()),
			modTime: info.ModTime(),
		})
	}

	// Newest first, keep n, then reverse to chronological order.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].modTime.After(matches[j].modTime)
	})
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[len(matches)-1-i] = m.path
	}
	return out, nil
}

// Depth returns how many files are currently selectable. Used by the
// coverage checker for profiles whose daily quota only applies when intake
// has material.
func (q *FileQueue) Depth() (int, error) {
	all, err := q.Ready(0)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Consume moves a selected file into the used directory so it cannot be
// selected again. Called only after the posting service accepted the
// submission; failed submissions leave the file in place as a retry
// candidate for the next run.
func (q *FileQueue) Consume(path string) error {
	if err := os.MkdirAll(q.usedDir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeAssetConsume, "creating used dir", err)
	}
	dest := filepath.Join(q.usedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return types.NewAppError(types.ErrCodeAssetConsume,
			fmt.Sprintf("moving %s to used", filepath.Base(path)), err)
	}
	return nil
}

func (q *FileQueue) matches(name string) bool {
	lower := strings.ToLower(name)
	if q.prefix != "" && !strings.HasPrefix(lower, strings.ToLower(q.prefix)) {
		return false
	}
	if q.ext != "" && !strings.HasSuffix(lower, strings.ToLower(q.ext)) {
		return false
	}
	return true
}
