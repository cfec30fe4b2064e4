package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Console prints alerts to a terminal, optionally ringing the bell.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	bell bool
}

// NewConsole creates a console channel writing to w.
func NewConsole(w io.Writer, bell bool) *Console {
	return &Console{w: w, bell: bell}
}

// Name implements Channel.
func (c *Console) Name() string { return "console" }

// Notify prints the alert message.
func (c *Console) Notify(ctx context.Context, alert logic.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := ""
	if c.bell {
		prefix = "\a"
	}
	line := fmt.Sprintf("%sALERT: %s", prefix, alert.Message)
	if alert.SnapshotPath != "" {
		line += fmt.Sprintf(" (snapshot: %s)", alert.SnapshotPath)
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}
