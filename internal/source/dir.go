package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sweeney/source-watcher/internal/logic"
)

// DirSource replays the JPEG files of a directory in name order.
// Useful for testing a detector against recorded footage.
type DirSource struct {
	files    []string
	index    int
	interval time.Duration
	seq      sequencer
}

// OpenDir lists the directory. An unreadable or empty directory is ErrUnavailable.
func OpenDir(opts Options) (*DirSource, error) {
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(opts.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no jpeg files in %s", ErrUnavailable, opts.Dir)
	}
	sort.Strings(files)

	return &DirSource{
		files:    files,
		interval: opts.PollInterval,
		seq:      sequencer{now: opts.Now},
	}, nil
}

// Next returns the next file's contents, pacing by the poll interval.
func (s *DirSource) Next(ctx context.Context) (logic.Frame, error) {
	if err := ctx.Err(); err != nil {
		return logic.Frame{}, err
	}
	if s.index >= len(s.files) {
		return logic.Frame{}, ErrEndOfStream
	}

	if s.index > 0 && s.interval > 0 {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return logic.Frame{}, ctx.Err()
		case <-timer.C:
		}
	}

	path := s.files[s.index]
	s.index++
	data, err := os.ReadFile(path)
	if err != nil {
		return logic.Frame{}, fmt.Errorf("%w: %v", ErrFrameRead, err)
	}
	return s.seq.frame(data), nil
}

// Close is a no-op.
func (s *DirSource) Close() error {
	return nil
}
