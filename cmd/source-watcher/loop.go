package main

import (
	"context"
	"errors"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/detect"
	"github.com/sweeney/source-watcher/internal/logic"
	"github.com/sweeney/source-watcher/internal/metrics"
	"github.com/sweeney/source-watcher/internal/mqtt"
	"github.com/sweeney/source-watcher/internal/notify"
	"github.com/sweeney/source-watcher/internal/source"
	"github.com/sweeney/source-watcher/internal/status"
)

// loop holds everything runLoop drives. publisher, mqttStatus and tracker
// may be nil.
type loop struct {
	src        source.Source
	det        detect.Detector
	watch      *logic.Watch
	disp       *notify.Dispatcher
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics

	snapshotDir string
	heartbeat   time.Duration
	grace       time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// runLoop processes frames strictly one at a time until ctx is cancelled or
// the source stops producing frames. Either way it publishes SHUTDOWN,
// releases the source, gives in-flight notifications up to l.grace to finish
// and returns nil.
func runLoop(ctx context.Context, l *loop) error {
	for {
		if ctx.Err() != nil {
			return l.shutdown(shutdownReason(ctx, nil))
		}

		frame, err := l.src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("source stopped", zap.Error(err))
			}
			return l.shutdown(shutdownReason(ctx, err))
		}

		started := time.Now()
		dets, err := l.det.Detect(ctx, frame)
		l.metrics.UpdateDetectLatency(time.Since(started))
		if err != nil {
			if ctx.Err() != nil {
				return l.shutdown(shutdownReason(ctx, nil))
			}
			l.logger.Warn("detect failed, skipping frame",
				zap.Uint64("frame", frame.Seq),
				zap.Error(err),
			)
			l.metrics.DetectErrors.Add(1)
			if l.tracker != nil {
				l.tracker.RecordDetectError(frame.Time)
			}
		} else {
			l.observe(frame, dets)
		}

		l.afterFrame(frame)
	}
}

// observe feeds one frame's detections through the watch and acts on the
// outcome: transitions are published, alerts dispatched.
func (l *loop) observe(frame logic.Frame, dets []logic.Detection) {
	out := l.watch.Observe(frame, dets)
	l.metrics.FramesProcessed.Add(1)
	l.metrics.SetOccupied(out.Present)

	if ev := out.Transition; ev != nil {
		l.metrics.Transitions.Add(1)
		l.logger.Debug("presence transition",
			zap.String("event", string(ev.Type)),
			zap.Uint64("frame", ev.FrameSeq),
		)
		if ev.Type == logic.EventBecameClear {
			l.logger.Info(logic.FormatClearMessage(ev.Timestamp.Local()))
		}
		if l.publisher != nil {
			if err := l.publisher.Publish(*ev); err != nil {
				l.logger.Warn("publish error", zap.Error(err))
			}
		}
	}

	if out.Alert != nil {
		alert := out.Alert.WithSnapshotPath(notify.SnapshotPath(l.snapshotDir, *out.Alert))
		l.logger.Info("ALERT: PERSON DETECTED",
			zap.String("alert_id", alert.ID),
			zap.Uint64("seq", alert.Seq),
			zap.String("at", alert.Timestamp.Local().Format("2006-01-02 15:04:05")),
			zap.String("snapshot", alert.SnapshotPath),
		)
		l.disp.Dispatch(alert)
		l.metrics.Alerts.Add(1)
		if l.tracker != nil {
			l.tracker.RecordAlert(alert)
		}
	}

	if s := out.Suppressed; s != nil {
		l.metrics.Suppressed.Add(1)
		l.logger.Info("alert suppressed by cooldown",
			zap.String("at", s.Timestamp.Local().Format("2006-01-02 15:04:05")),
			zap.Duration("remaining", s.Remaining),
		)
	}

	if l.tracker != nil {
		machine := l.watch.Machine()
		l.tracker.Update(machine.CurrentState(), machine.EventCountsSnapshot(), frame.Time)
	}
}

// afterFrame runs for every frame read, whether or not detection succeeded.
func (l *loop) afterFrame(frame logic.Frame) {
	if l.tracker != nil && l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}

	hb := l.watch.Machine().CheckHeartbeat(frame.Time, l.heartbeat)
	if hb == nil {
		return
	}
	l.logger.Info("heartbeat",
		zap.Duration("uptime", hb.Uptime),
		zap.Int("became_present", hb.Counts.BecamePresent),
		zap.Int("became_clear", hb.Counts.BecameClear),
		zap.Int("alerts", hb.Counts.Alerts),
		zap.Int("suppressed", hb.Counts.Suppressed),
	)
	if l.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if l.tracker != nil {
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("heartbeat publish error", zap.Error(err))
	}
}

func (l *loop) shutdown(reason string) error {
	fields := []zap.Field{zap.String("reason", reason)}
	if at, ok := l.watch.Gate().LastFired(); ok {
		fields = append(fields, zap.Time("last_alert", at))
	}
	l.logger.Info("shutting down", fields...)

	if l.publisher != nil {
		event := mqtt.SystemEvent{
			Timestamp: l.now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if l.tracker != nil {
			if l.mqttStatus != nil {
				l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
			}
			event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
		}
		if err := l.publisher.PublishSystem(event); err != nil {
			l.logger.Warn("failed to publish shutdown event", zap.Error(err))
		}
	}

	if err := l.src.Close(); err != nil {
		l.logger.Warn("closing source", zap.Error(err))
	}
	l.disp.Drain(l.grace)
	if err := l.disp.Close(); err != nil {
		l.logger.Warn("closing notification channels", zap.Error(err))
	}
	return nil
}

// shutdownReason names why the loop stopped: the signal or service stop that
// cancelled ctx, or how the source failed.
func shutdownReason(ctx context.Context, readErr error) string {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		var sc signalCause
		switch {
		case errors.As(cause, &sc):
			switch sc.sig {
			case syscall.SIGINT:
				return "SIGINT"
			case syscall.SIGTERM:
				return "SIGTERM"
			}
			return "UNKNOWN"
		case errors.Is(cause, errServiceStop):
			return "SERVICE_STOP"
		}
		return "CANCELLED"
	}
	if errors.Is(readErr, source.ErrEndOfStream) {
		return "END_OF_STREAM"
	}
	return "READ_FAILURE"
}
