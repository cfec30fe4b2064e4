// Package notify fans alert events out to independent, best-effort channels.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Channel is one alert sink. Notify is called at most once per alert.
// Errors are logged by the Dispatcher and never retried.
type Channel interface {
	Name() string
	Notify(ctx context.Context, alert logic.AlertEvent) error
}

// DefaultTimeout bounds a single channel invocation.
const DefaultTimeout = 30 * time.Second

// ResultFunc observes the outcome of each channel invocation.
// err is nil on success.
type ResultFunc func(channel string, err error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-channel deadline.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithResultFunc registers a callback run after every channel invocation.
func WithResultFunc(fn ResultFunc) Option {
	return func(disp *Dispatcher) {
		disp.onResult = fn
	}
}

// Dispatcher runs every channel in its own goroutine. Dispatch never blocks
// on a channel, and a failing or panicking channel does not affect the others.
type Dispatcher struct {
	channels []Channel
	logger   *zap.Logger
	timeout  time.Duration
	onResult ResultFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher for the given channels.
func NewDispatcher(logger *zap.Logger, channels []Channel, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		channels: channels,
		logger:   logger,
		timeout:  DefaultTimeout,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Names returns the registered channel names in order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch submits alert to every channel and returns immediately.
func (d *Dispatcher) Dispatch(alert logic.AlertEvent) {
	for _, ch := range d.channels {
		d.wg.Add(1)
		go d.run(ch, alert)
	}
}

func (d *Dispatcher) run(ch Channel, alert logic.AlertEvent) {
	defer d.wg.Done()

	start := time.Now()
	err := d.invoke(ch, alert)
	if err != nil {
		d.logger.Warn("notify channel failed",
			zap.String("channel", ch.Name()),
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	} else {
		d.logger.Debug("notify channel delivered",
			zap.String("channel", ch.Name()),
			zap.String("alert_id", alert.ID),
			zap.Duration("took", time.Since(start)),
		)
	}

	if d.onResult != nil {
		d.onResult(ch.Name(), err)
	}
}

func (d *Dispatcher) invoke(ch Channel, alert logic.AlertEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	return ch.Notify(ctx, alert)
}

// Drain waits up to grace for in-flight channel invocations. If they do not
// finish in time their contexts are cancelled and Drain returns false.
func (d *Dispatcher) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		d.cancel()
		d.logger.Warn("notify channels still running at shutdown, abandoning", zap.Duration("grace", grace))
		return false
	}
}

// Close releases channels that hold resources. Call after Drain.
func (d *Dispatcher) Close() error {
	d.cancel()

	var errs []error
	for _, ch := range d.channels {
		c, ok := ch.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
