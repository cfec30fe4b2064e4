// Package config loads source-watcher settings from defaults, an optional
// YAML file, SOURCE_WATCHER_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/source-watcher/internal/source"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix for environment overrides, e.g.
// SOURCE_WATCHER_DETECTOR_URL for detector.url.
const EnvPrefix = "SOURCE_WATCHER"

// FileName is the config file looked up in $HOME when --config is not given.
const FileName = ".source-watcher"

// Config is the fully resolved configuration.
type Config struct {
	// File is the config file that was read, empty if none.
	File string

	Source   Source
	Detector Detector
	Presence Presence
	Alert    Alert
	Snapshot Snapshot
	Notify   Notify

	DispatchGrace time.Duration
	Heartbeat     time.Duration
	HTTPAddr      string
	Log           Log
}

// Source selects where frames come from. URL, or the camera keys used to
// build it, applies to the mjpeg and snapshot kinds; Dir to the dir kind.
type Source struct {
	Kind         string
	URL          string
	Mode         string
	Host         string
	ForwardPort  string
	Username     string
	Password     string
	Dir          string
	PollInterval time.Duration
	ReadRetries  int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Detector addresses the object-detection HTTP service.
type Detector struct {
	URL     string
	Path    string
	Timeout time.Duration
	APIKey  string
}

// Presence decides which detections count as the watched label.
type Presence struct {
	Label     string
	Threshold float64
}

// Alert holds the minimum time between two alerts.
type Alert struct {
	Cooldown time.Duration
}

// Snapshot controls the JPEG written for every alert.
type Snapshot struct {
	Dir      string
	Annotate bool
	Quality  int
}

// Notify holds the optional channels. The snapshot channel is always on.
type Notify struct {
	Console  Console
	MQTT     MQTT
	Webhook  Webhook
	Redis    Redis
	Postgres Postgres
	GPIO     GPIO
}

// Console prints alerts to stdout, optionally ringing the terminal bell.
type Console struct {
	Enabled bool
	Bell    bool
}

// MQTT publishes alerts and lifecycle events to a broker.
type MQTT struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Buffer   int
}

// Webhook POSTs each alert as JSON, with Token sent as a bearer token.
type Webhook struct {
	Enabled bool
	URL     string
	Token   string
	Timeout time.Duration
}

// Redis appends alerts to a stream, capped at MaxLen entries when positive.
type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// Postgres records alerts in the alert_events table.
type Postgres struct {
	Enabled bool
	DSN     string
}

// GPIO pulses a siren line on Chip for Pulse per alert.
type GPIO struct {
	Enabled bool
	Chip    string
	Line    int
	Pulse   time.Duration
}

// Log configures the zap logger. Format is console or json.
type Log struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"source.kind":          source.KindMJPEG,
	"source.mode":          source.ModeLocal,
	"source.poll_interval": time.Second,
	"source.read_retries":  0,
	"source.retry_backoff": 500 * time.Millisecond,
	"source.timeout":       10 * time.Second,

	"detector.path":    "/v1/vision/detection",
	"detector.timeout": 5 * time.Second,

	"presence.label":                "person",
	"presence.confidence_threshold": 0.5,

	"alert.cooldown": 300 * time.Second,

	"snapshot.dir":      "alerts",
	"snapshot.annotate": true,
	"snapshot.quality":  90,

	"notify.console.enabled": true,
	"notify.console.bell":    true,

	"notify.mqtt.enabled":   false,
	"notify.mqtt.client_id": "source-watcher",
	"notify.mqtt.buffer":    100,

	"notify.webhook.enabled": false,
	"notify.webhook.timeout": 10 * time.Second,

	"notify.redis.enabled": false,
	"notify.redis.db":      0,
	"notify.redis.stream":  "source-watcher:alerts",
	"notify.redis.max_len": 1000,

	"notify.postgres.enabled": false,

	"notify.gpio.enabled": false,
	"notify.gpio.chip":    "gpiochip0",
	"notify.gpio.line":    17,
	"notify.gpio.pulse":   3 * time.Second,

	"dispatch.grace": 2 * time.Second,
	"heartbeat":      15 * time.Minute,
	"http.addr":      ":8080",
	"log.level":      "info",
	"log.format":     "console",
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"source":      "source.url",
	"source-kind": "source.kind",
	"source-dir":  "source.dir",
	"detector":    "detector.url",
	"threshold":   "presence.confidence_threshold",
	"cooldown":    "alert.cooldown",
	"snapshots":   "snapshot.dir",
	"http":        "http.addr",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// Load reads the configuration. cfgFile may be empty, in which case
// $HOME/.source-watcher.yaml is used if it exists. flags may be nil; any
// flag named in FlagKeys that the user set overrides the file and env.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, cfgFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: reading config: %v", ErrInvalid, err)
			}
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		File: v.ConfigFileUsed(),
		Source: Source{
			Kind:         strings.ToLower(v.GetString("source.kind")),
			URL:          v.GetString("source.url"),
			Mode:         strings.ToLower(v.GetString("source.mode")),
			Host:         v.GetString("source.host"),
			ForwardPort:  v.GetString("source.forward_port"),
			Username:     v.GetString("source.username"),
			Password:     v.GetString("source.password"),
			Dir:          v.GetString("source.dir"),
			PollInterval: v.GetDuration("source.poll_interval"),
			ReadRetries:  v.GetInt("source.read_retries"),
			RetryBackoff: v.GetDuration("source.retry_backoff"),
			Timeout:      v.GetDuration("source.timeout"),
		},
		Detector: Detector{
			URL:     v.GetString("detector.url"),
			Path:    v.GetString("detector.path"),
			Timeout: v.GetDuration("detector.timeout"),
			APIKey:  v.GetString("detector.api_key"),
		},
		Presence: Presence{
			Label:     v.GetString("presence.label"),
			Threshold: v.GetFloat64("presence.confidence_threshold"),
		},
		Alert: Alert{
			Cooldown: v.GetDuration("alert.cooldown"),
		},
		Snapshot: Snapshot{
			Dir:      v.GetString("snapshot.dir"),
			Annotate: v.GetBool("snapshot.annotate"),
			Quality:  v.GetInt("snapshot.quality"),
		},
		Notify: Notify{
			Console: Console{
				Enabled: v.GetBool("notify.console.enabled"),
				Bell:    v.GetBool("notify.console.bell"),
			},
			MQTT: MQTT{
				Enabled:  v.GetBool("notify.mqtt.enabled"),
				Broker:   v.GetString("notify.mqtt.broker"),
				ClientID: v.GetString("notify.mqtt.client_id"),
				Username: v.GetString("notify.mqtt.username"),
				Password: v.GetString("notify.mqtt.password"),
				Buffer:   v.GetInt("notify.mqtt.buffer"),
			},
			Webhook: Webhook{
				Enabled: v.GetBool("notify.webhook.enabled"),
				URL:     v.GetString("notify.webhook.url"),
				Token:   v.GetString("notify.webhook.token"),
				Timeout: v.GetDuration("notify.webhook.timeout"),
			},
			Redis: Redis{
				Enabled:  v.GetBool("notify.redis.enabled"),
				Addr:     v.GetString("notify.redis.addr"),
				Password: v.GetString("notify.redis.password"),
				DB:       v.GetInt("notify.redis.db"),
				Stream:   v.GetString("notify.redis.stream"),
				MaxLen:   v.GetInt64("notify.redis.max_len"),
			},
			Postgres: Postgres{
				Enabled: v.GetBool("notify.postgres.enabled"),
				DSN:     v.GetString("notify.postgres.dsn"),
			},
			GPIO: GPIO{
				Enabled: v.GetBool("notify.gpio.enabled"),
				Chip:    v.GetString("notify.gpio.chip"),
				Line:    v.GetInt("notify.gpio.line"),
				Pulse:   v.GetDuration("notify.gpio.pulse"),
			},
		},
		DispatchGrace: v.GetDuration("dispatch.grace"),
		Heartbeat:     v.GetDuration("heartbeat"),
		HTTPAddr:      v.GetString("http.addr"),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// Validate checks the configuration. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Detector.URL == "" {
		return fmt.Errorf("%w: detector.url is required", ErrInvalid)
	}
	if t := c.Presence.Threshold; !(t >= 0 && t <= 1) {
		return fmt.Errorf("%w: presence.confidence_threshold must be within [0,1], got %v", ErrInvalid, t)
	}
	if c.Alert.Cooldown < 0 {
		return fmt.Errorf("%w: alert.cooldown must not be negative", ErrInvalid)
	}
	if c.DispatchGrace < 0 {
		return fmt.Errorf("%w: dispatch.grace must not be negative", ErrInvalid)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid)
	}
	if c.Snapshot.Quality < 1 || c.Snapshot.Quality > 100 {
		return fmt.Errorf("%w: snapshot.quality must be within [1,100]", ErrInvalid)
	}

	switch c.Source.Kind {
	case source.KindDir:
		if c.Source.Dir == "" {
			return fmt.Errorf("%w: source.dir is required for the dir source", ErrInvalid)
		}
	case source.KindMJPEG, source.KindSnapshot:
		if _, err := c.SourceURL(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown source.kind %q", ErrInvalid, c.Source.Kind)
	}

	n := c.Notify
	if n.MQTT.Enabled && n.MQTT.Broker == "" {
		return fmt.Errorf("%w: notify.mqtt.broker is required when mqtt is enabled", ErrInvalid)
	}
	if n.Webhook.Enabled && n.Webhook.URL == "" {
		return fmt.Errorf("%w: notify.webhook.url is required when the webhook is enabled", ErrInvalid)
	}
	if n.Redis.Enabled && n.Redis.Addr == "" {
		return fmt.Errorf("%w: notify.redis.addr is required when redis is enabled", ErrInvalid)
	}
	if n.Postgres.Enabled && n.Postgres.DSN == "" {
		return fmt.Errorf("%w: notify.postgres.dsn is required when postgres is enabled", ErrInvalid)
	}
	return nil
}

// SourceURL returns source.url, or builds the camera URL from the
// mode/host/credential keys when it is empty.
func (c *Config) SourceURL() (string, error) {
	if c.Source.URL != "" {
		return c.Source.URL, nil
	}
	s := c.Source
	u, err := source.BuildCameraURL(s.Mode, s.Username, s.Password, s.Host, s.ForwardPort, s.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return u, nil
}

// SourceOptions converts the source section for source.Open.
func (c *Config) SourceOptions() (source.Options, error) {
	opts := source.Options{
		Kind:         c.Source.Kind,
		Username:     c.Source.Username,
		Password:     c.Source.Password,
		Dir:          c.Source.Dir,
		PollInterval: c.Source.PollInterval,
		Timeout:      c.Source.Timeout,
		ReadRetries:  c.Source.ReadRetries,
		RetryBackoff: c.Source.RetryBackoff,
	}
	if c.Source.Kind != source.KindDir {
		u, err := c.SourceURL()
		if err != nil {
			return source.Options{}, err
		}
		opts.URL = u
	}
	return opts, nil
}

// Channels lists the enabled notification channel names, in dispatch order.
// The snapshot channel is always present.
func (c *Config) Channels() []string {
	names := []string{"snapshot"}
	n := c.Notify
	if n.Console.Enabled {
		names = append(names, "console")
	}
	if n.MQTT.Enabled {
		names = append(names, "mqtt")
	}
	if n.Webhook.Enabled {
		names = append(names, "webhook")
	}
	if n.Redis.Enabled {
		names = append(names, "redis")
	}
	if n.Postgres.Enabled {
		names = append(names, "postgres")
	}
	if n.GPIO.Enabled {
		names = append(names, "gpio")
	}
	return names
}
