package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"bodytrack/pkg/logging"
	"bodytrack/pkg/pose"
	"bodytrack/pkg/protocol"
)

const DefaultConfigPath = "bodytrack.toml"

const (
	minQueueSize = 1
	maxQueueSize = 16

	maxPayloadLimit = 1 << 30
)

type Config struct {
	Server     ServerConfig    `toml:"server"`
	Alignment  AlignmentConfig `toml:"alignment"`
	Scale      pose.Scale      `toml:"scale"`
	Render     RenderConfig    `toml:"render"`
	Foxglove   FoxgloveConfig  `toml:"foxglove"`
	Metrics    MetricsConfig   `toml:"metrics"`
	Record     RecordConfig    `toml:"record"`
	Log        LogConfig       `toml:"log"`
	configPath string          `toml:"-"`
}

type ServerConfig struct {
	Mode         string `toml:"mode"`
	Addr         string `toml:"addr"`
	Transport    string `toml:"transport"`
	ReadTimeout  string `toml:"read_timeout"`
	ResyncDelay  string `toml:"resync_delay"`
	Reconnect    string `toml:"reconnect"`
	ReconnectMax string `toml:"reconnect_max"`
	ReaderBuf    int    `toml:"reader_buf"`
	MaxPayload   int    `toml:"max_payload"`
}

// AlignmentConfig holds the calibrated anchor and a fixed device position
// used when no live tracking source is attached.
type AlignmentConfig struct {
	Reference pose.Vec3 `toml:"reference"`
	Device    pose.Vec3 `toml:"device"`
}

type RenderConfig struct {
	QueueSize int    `toml:"queue_size"`
	Tick      string `toml:"tick"`
}

type FoxgloveConfig struct {
	Enabled     bool   `toml:"enabled"`
	WSAddr      string `toml:"ws_addr"`
	JointsTopic string `toml:"joints_topic"`
	MarkerTopic string `toml:"marker_topic"`
	LogTopic    string `toml:"log_topic"`
	LogName     string `toml:"log_name"`
	ParentFrame string `toml:"parent_frame"`
	FrameID     string `toml:"frame_id"`
}

// MetricsConfig leaves the endpoint off when Addr is empty.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// RecordConfig paths are relative to the config file. Empty disables.
type RecordConfig struct {
	JSONL  string `toml:"jsonl"`
	SQLite string `toml:"sqlite"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Mode:         "listen",
			Addr:         "0.0.0.0:8080",
			Transport:    protocol.CodecBase64,
			ReadTimeout:  "30s",
			ResyncDelay:  "10ms",
			Reconnect:    "1s",
			ReconnectMax: "30s",
			ReaderBuf:    64 * 1024,
			MaxPayload:   protocol.DefaultMaxPayload,
		},
		Alignment: AlignmentConfig{
			Reference: pose.Vec3{X: 0, Y: 0, Z: 1},
		},
		Scale: pose.DefaultScale(),
		Render: RenderConfig{
			QueueSize: 3,
			Tick:      "16ms",
		},
		Foxglove: FoxgloveConfig{
			Enabled:     true,
			WSAddr:      "127.0.0.1:8765",
			JointsTopic: "/bodytrack/joints",
			MarkerTopic: "/bodytrack/skeleton",
			LogTopic:    "/bodytrack/log",
			LogName:     "bodytrack",
			ParentFrame: "world",
			FrameID:     "body",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9108",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatAuto,
		},
	}
}

func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads path over the defaults. A missing file is not an
// error; the second result reports whether it existed.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.configPath = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func (cfg *Config) Save(path string) error {
	cfg.configPath = path
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (cfg *Config) ConfigPath() string {
	return cfg.configPath
}

// ResolvePath anchors a relative path at the config file's directory.
func (cfg *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || cfg.configPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(cfg.configPath), p)
}

func (cfg *Config) Validate() error {
	s := cfg.Server
	switch s.Mode {
	case "listen", "dial":
	default:
		return fmt.Errorf("server.mode must be listen or dial, got %q", s.Mode)
	}
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", s.Addr, err)
	}
	if _, err := protocol.CodecByName(s.Transport); err != nil {
		return fmt.Errorf("server.transport: %w", err)
	}
	for _, d := range []struct {
		key, value string
		positive   bool
	}{
		{"server.read_timeout", s.ReadTimeout, false},
		{"server.resync_delay", s.ResyncDelay, false},
		{"server.reconnect", s.Reconnect, true},
		{"server.reconnect_max", s.ReconnectMax, true},
		{"render.tick", cfg.Render.Tick, true},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 || (d.positive && v == 0) {
			return fmt.Errorf("%s out of range: %s", d.key, d.value)
		}
	}
	if s.ReaderBuf < 0 {
		return fmt.Errorf("server.reader_buf must not be negative: %d", s.ReaderBuf)
	}
	if s.MaxPayload <= 0 || s.MaxPayload > maxPayloadLimit {
		return fmt.Errorf("server.max_payload out of range (0, %d]: %d", maxPayloadLimit, s.MaxPayload)
	}

	if cfg.Scale.Base <= 0 {
		return fmt.Errorf("scale.base must be positive: %g", cfg.Scale.Base)
	}
	if d := cfg.Scale.Divisor(cfg.Alignment.Device.Z); d <= 0 {
		return fmt.Errorf("scale.gain %g with alignment.device.z %g gives non-positive divisor %g",
			cfg.Scale.Gain, cfg.Alignment.Device.Z, d)
	}
	if cfg.Render.QueueSize < minQueueSize || cfg.Render.QueueSize > maxQueueSize {
		return fmt.Errorf("render.queue_size out of range [%d, %d]: %d", minQueueSize, maxQueueSize, cfg.Render.QueueSize)
	}

	if cfg.Foxglove.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Foxglove.WSAddr); err != nil {
			return fmt.Errorf("foxglove.ws_addr %q: %w", cfg.Foxglove.WSAddr, err)
		}
	}
	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr %q: %w", cfg.Metrics.Addr, err)
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case logging.FormatAuto, logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be auto, console or json, got %q", cfg.Log.Format)
	}
	return nil
}

func (cfg *Config) normalize() {
	def := Default()

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = def.Server.Mode
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	cfg.Server.Transport = strings.ToLower(strings.TrimSpace(cfg.Server.Transport))
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = def.Server.Transport
	}
	if cfg.Server.ReadTimeout == "" {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.ResyncDelay == "" {
		cfg.Server.ResyncDelay = def.Server.ResyncDelay
	}
	if cfg.Server.Reconnect == "" {
		cfg.Server.Reconnect = def.Server.Reconnect
	}
	if cfg.Server.ReconnectMax == "" {
		cfg.Server.ReconnectMax = def.Server.ReconnectMax
	}
	if cfg.Server.ReaderBuf == 0 {
		cfg.Server.ReaderBuf = def.Server.ReaderBuf
	}
	if cfg.Server.MaxPayload == 0 {
		cfg.Server.MaxPayload = def.Server.MaxPayload
	}

	if cfg.Scale.Base == 0 && cfg.Scale.Gain == 0 {
		cfg.Scale = def.Scale
	}
	if cfg.Render.QueueSize == 0 {
		cfg.Render.QueueSize = def.Render.QueueSize
	}
	if cfg.Render.Tick == "" {
		cfg.Render.Tick = def.Render.Tick
	}

	if cfg.Foxglove.WSAddr == "" {
		cfg.Foxglove.WSAddr = def.Foxglove.WSAddr
	}
	if cfg.Foxglove.JointsTopic == "" {
		cfg.Foxglove.JointsTopic = def.Foxglove.JointsTopic
	}
	if cfg.Foxglove.MarkerTopic == "" {
		cfg.Foxglove.MarkerTopic = def.Foxglove.MarkerTopic
	}
	if cfg.Foxglove.LogTopic == "" {
		cfg.Foxglove.LogTopic = def.Foxglove.LogTopic
	}
	if cfg.Foxglove.LogName == "" {
		cfg.Foxglove.LogName = def.Foxglove.LogName
	}
	if cfg.Foxglove.ParentFrame == "" {
		cfg.Foxglove.ParentFrame = def.Foxglove.ParentFrame
	}
	if cfg.Foxglove.FrameID == "" {
		cfg.Foxglove.FrameID = def.Foxglove.FrameID
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Durations returns the parsed timing settings. Call after Validate.
func (cfg *Config) Durations() Timings {
	return Timings{
		ReadTimeout:  mustDuration(cfg.Server.ReadTimeout),
		ResyncDelay:  mustDuration(cfg.Server.ResyncDelay),
		Reconnect:    mustDuration(cfg.Server.Reconnect),
		ReconnectMax: mustDuration(cfg.Server.ReconnectMax),
		RenderTick:   mustDuration(cfg.Render.Tick),
	}
}

type Timings struct {
	ReadTimeout  time.Duration
	ResyncDelay  time.Duration
	Reconnect    time.Duration
	ReconnectMax time.Duration
	RenderTick   time.Duration
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
