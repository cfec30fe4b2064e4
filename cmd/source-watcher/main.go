// Command source-watcher watches a camera stream, detects people in each frame
// and raises cooldown-gated alerts through a set of notification channels.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/config"
	"github.com/sweeney/source-watcher/internal/detect"
	"github.com/sweeney/source-watcher/internal/gpio"
	"github.com/sweeney/source-watcher/internal/logging"
	"github.com/sweeney/source-watcher/internal/logic"
	"github.com/sweeney/source-watcher/internal/metrics"
	"github.com/sweeney/source-watcher/internal/mqtt"
	"github.com/sweeney/source-watcher/internal/notify"
	"github.com/sweeney/source-watcher/internal/source"
	"github.com/sweeney/source-watcher/internal/status"
	"github.com/sweeney/source-watcher/internal/web"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "source-watcher",
	Short: "Person detection and alerting for a camera stream",
	Long: `Reads frames from an MJPEG stream, a snapshot URL or a directory of JPEGs,
sends each frame to an object detector and raises an alert when a person
appears. Alerts are rate limited by a cooldown and fanned out to the
configured channels (snapshot file, console, MQTT, webhook, Redis stream,
Postgres, GPIO siren).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		return run(context.Background(), cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.source-watcher.yaml)")
	pf.String("source", "", "stream or snapshot URL (built from source.host when empty)")
	pf.String("source-kind", source.KindMJPEG, "source kind: mjpeg, snapshot or dir")
	pf.String("source-dir", "", "directory of JPEG frames for the dir source")
	pf.String("detector", "", "detector base URL")
	pf.Float64("threshold", logic.DefaultConfidenceThreshold, "person confidence threshold (strictly greater than)")
	pf.Duration("cooldown", logic.DefaultCooldown, "minimum time between alerts")
	pf.String("snapshots", "alerts", "directory for alert snapshots")
	pf.String("http", ":8080", "HTTP status address (empty to disable)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// errServiceStop is the cancellation cause when the service manager stops us.
var errServiceStop = errors.New("service stop")

// signalCause is the cancellation cause when a signal arrives.
type signalCause struct {
	sig os.Signal
}

func (s signalCause) Error() string {
	return "received " + s.sig.String()
}

// run wires every component from cfg and blocks until ctx is cancelled, a
// signal arrives or the source ends. Only an invalid configuration or a
// source that cannot be opened is returned as an error.
func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.File != "" {
		logger.Info("loaded config", zap.String("file", cfg.File))
	}

	// Signals cancel everything from here on, including a blocked source read.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			cancel(signalCause{sig: s})
		case <-ctx.Done():
		}
	}()

	srcOpts, err := cfg.SourceOptions()
	if err != nil {
		return err
	}
	src, err := source.Open(ctx, srcOpts)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	det := detect.NewHTTPDetector(detect.Config{
		BaseURL: cfg.Detector.URL,
		Path:    cfg.Detector.Path,
		Timeout: cfg.Detector.Timeout,
		APIKey:  cfg.Detector.APIKey,
	}, logger)

	m := metrics.New()
	snapshots := notify.NewSnapshotWriter(cfg.Snapshot.Dir, cfg.Snapshot.Annotate, cfg.Snapshot.Quality, logger)
	channels, pub := buildChannels(ctx, cfg, snapshots, logger)
	disp := notify.NewDispatcher(logger, channels, notify.WithResultFunc(m.ChannelResult))
	if missing := unavailableChannels(cfg.Channels(), disp.Names()); len(missing) > 0 {
		logger.Warn("alerts will not reach some configured channels", zap.Strings("channels", missing))
	}

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if pub != nil {
		publisher = pub
		mqttStatus = pub
		defer pub.Close()
	}

	sourceDesc := cfg.Source.Dir
	if srcOpts.URL != "" {
		sourceDesc = source.Redact(srcOpts.URL)
	}

	start := time.Now()
	watch := logic.NewWatch(logic.WatchConfig{
		Label:     cfg.Presence.Label,
		Threshold: cfg.Presence.Threshold,
		Cooldown:  cfg.Alert.Cooldown,
		NewID:     uuid.NewString,
	}, start)

	tracker := status.NewTracker(start, status.Config{
		Source:      sourceDesc,
		SourceKind:  cfg.Source.Kind,
		Detector:    cfg.Detector.URL,
		Label:       watch.Label(),
		Threshold:   watch.Threshold(),
		CooldownMs:  watch.Gate().Cooldown().Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Notify.MQTT.Broker,
		HTTPPort:    cfg.HTTPAddr,
		Channels:    disp.Names(),
	})

	if publisher != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warn("failed to publish startup event", zap.Error(err))
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, web.Options{
			Metrics:        m.Handler(),
			LatestSnapshot: snapshots.Latest,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	logger.Info("started",
		zap.String("source", sourceDesc),
		zap.String("kind", cfg.Source.Kind),
		zap.String("detector", cfg.Detector.URL),
		zap.String("label", watch.Label()),
		zap.Float64("threshold", watch.Threshold()),
		zap.Duration("cooldown", watch.Gate().Cooldown()),
		zap.Strings("channels", disp.Names()),
	)

	return runLoop(ctx, &loop{
		src:         src,
		det:         det,
		watch:       watch,
		disp:        disp,
		publisher:   publisher,
		mqttStatus:  mqttStatus,
		tracker:     tracker,
		metrics:     m,
		snapshotDir: cfg.Snapshot.Dir,
		heartbeat:   cfg.Heartbeat,
		grace:       cfg.DispatchGrace,
		now:         time.Now,
		logger:      logger,
	})
}

// buildChannels creates the enabled notification channels. A channel that
// fails to initialise is logged and left out; alert delivery is best effort.
// The returned publisher is non-nil when MQTT is enabled.
func buildChannels(ctx context.Context, cfg *config.Config, snapshots *notify.SnapshotWriter, logger *zap.Logger) ([]notify.Channel, *mqtt.RealPublisher) {
	channels := []notify.Channel{snapshots}
	n := cfg.Notify

	if n.Console.Enabled {
		channels = append(channels, notify.NewConsole(os.Stdout, n.Console.Bell))
	}

	var pub *mqtt.RealPublisher
	if n.MQTT.Enabled {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:     n.MQTT.Broker,
			ClientID:   n.MQTT.ClientID,
			Username:   n.MQTT.Username,
			Password:   n.MQTT.Password,
			BufferSize: n.MQTT.Buffer,
		}, logger)
		if err != nil {
			logger.Warn("mqtt disabled", zap.Error(err))
		} else {
			pub = p
			channels = append(channels, mqtt.NewAlertChannel(p))
		}
	}

	if n.Webhook.Enabled {
		channels = append(channels, notify.NewWebhook(n.Webhook.URL, n.Webhook.Token, n.Webhook.Timeout))
	}

	if n.Redis.Enabled {
		client, err := notify.NewRedisClient(ctx, n.Redis.Addr, n.Redis.Password, n.Redis.DB)
		if err != nil {
			logger.Warn("redis channel disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewRedisStream(client, n.Redis.Stream, n.Redis.MaxLen))
		}
	}

	if n.Postgres.Enabled {
		if pg, err := openPostgresLog(ctx, n.Postgres.DSN, logger); err != nil {
			logger.Warn("postgres channel disabled", zap.Error(err))
		} else {
			channels = append(channels, pg)
		}
	}

	if n.GPIO.Enabled {
		out, err := gpio.NewRealOutput(n.GPIO.Chip, n.GPIO.Line)
		if err != nil {
			logger.Warn("gpio siren disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewSiren(out, n.GPIO.Pulse))
		}
	}

	return channels, pub
}

// unavailableChannels returns the configured channel names that did not make
// it into the dispatcher.
func unavailableChannels(configured, active []string) []string {
	var missing []string
	for _, name := range configured {
		if !slices.Contains(active, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func openPostgresLog(ctx context.Context, dsn string, logger *zap.Logger) (*notify.PostgresLog, error) {
	db, err := notify.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pg := notify.NewPostgresLog(db, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
