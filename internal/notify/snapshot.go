package notify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
	"github.com/sweeney/source-watcher/internal/overlay"
)

// maxNameAttempts bounds the suffixes tried when a snapshot name is taken.
const maxNameAttempts = 100

// SnapshotPath returns the file an alert's frame is saved to. The name is
// derived from the alert time, the sequence number and the start of the alert
// ID. The ID keeps names from a restarted process, whose sequence starts over,
// apart from earlier ones.
func SnapshotPath(dir string, alert logic.AlertEvent) string {
	name := fmt.Sprintf("alert_%d_%d", alert.Timestamp.Unix(), alert.Seq)
	if id := shortID(alert.ID); id != "" {
		name += "_" + id
	}
	return filepath.Join(dir, name+".jpg")
}

// shortID keeps up to eight letters and digits of id.
func shortID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() == 8 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnapshotWriter saves the triggering frame of each alert to disk.
type SnapshotWriter struct {
	dir      string
	annotate bool
	quality  int
	logger   *zap.Logger

	mu     sync.RWMutex
	latest string
}

// NewSnapshotWriter creates a writer for dir. When annotate is set, person
// boxes are drawn onto the saved image.
func NewSnapshotWriter(dir string, annotate bool, quality int, logger *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{dir: dir, annotate: annotate, quality: quality, logger: logger}
}

// Name implements Channel.
func (w *SnapshotWriter) Name() string { return "snapshot" }

// Notify writes the snapshot file.
func (w *SnapshotWriter) Notify(ctx context.Context, alert logic.AlertEvent) error {
	data := alert.Frame.Image
	if len(data) == 0 {
		return errors.New("alert has no frame image")
	}

	path := alert.SnapshotPath
	if path == "" {
		path = SnapshotPath(w.dir, alert)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if w.annotate && len(alert.Detections) > 0 {
		annotated, err := overlay.Annotate(data, alert.Detections, w.quality)
		if err != nil {
			w.logger.Debug("overlay skipped, saving raw frame", zap.Error(err))
		} else {
			data = annotated
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	written, err := writeExclusive(path, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.latest = written
	w.mu.Unlock()

	if written != path {
		// Other channels were already told about path.
		w.logger.Warn("snapshot name taken, saved under another name",
			zap.String("path", path),
			zap.String("saved", written),
			zap.String("alert_id", alert.ID),
		)
	}
	w.logger.Info("snapshot saved", zap.String("path", written), zap.String("alert_id", alert.ID))
	return nil
}

// Latest returns the path of the most recently saved snapshot, or "".
func (w *SnapshotWriter) Latest() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

// writeExclusive creates path, never overwriting an existing file. When the
// name is taken, "-1", "-2" ... is inserted before the extension.
func writeExclusive(path string, data []byte) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := path
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}

		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close snapshot: %w", err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("create snapshot: no free name for %s", path)
}
