package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScaleConfig holds the wiring and calibration of the HX711 load cell.
type ScaleConfig struct {
	DataPin       int     `yaml:"data_pin"`       // HX711 DOUT (BCM)
	ClockPin      int     `yaml:"clock_pin"`      // HX711 PD_SCK (BCM)
	ReferenceUnit float64 `yaml:"reference_unit"` // raw counts per gram
	TareSamples   int     `yaml:"tare_samples"`   // samples averaged when taring
	ReadSamples   int     `yaml:"read_samples"`   // samples averaged per weight reading
	// Note: VCC/GND are physically connected to the Raspberry Pi rails
}

// WatchConfig tunes the theft detection loop.
type WatchConfig struct {
	ItemWeightG    float64 `yaml:"item_weight_g"`    // weight of one biscuit in grams
	DeltaWeightG   float64 `yaml:"delta_weight_g"`   // tolerance when re-checking after recording
	ItemFraction   float64 `yaml:"item_fraction"`    // fraction of one item that counts as a theft
	PollIntervalMs int     `yaml:"poll_interval_ms"` // delay between weight readings
	QuietStartHour int     `yaml:"quiet_start_hour"` // no alerts at or after this hour (24h)
	QuietEndHour   int     `yaml:"quiet_end_hour"`   // no alerts at or before this hour (24h)
	SkipWeekends   bool    `yaml:"skip_weekends"`    // no alerts on Saturday/Sunday
}

// CameraConfig describes how to reach the network camera.
// The camera is located by MAC address on the given network; Host is an
// optional static address used when ARP discovery is unavailable.
type CameraConfig struct {
	Network   string `yaml:"network"`   // CIDR to scan, e.g. "192.168.1.0/24"
	Interface string `yaml:"interface"` // network interface for ARP, e.g. "wlan0"
	MAC       string `yaml:"mac"`       // camera MAC address
	Host      string `yaml:"host"`      // optional static IP, skips discovery
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Stream    string `yaml:"stream"` // RTSP stream name; stream1 is 1080p, stream2 is 360p
}

// CaptureConfig tunes the recorded clip and GIF output.
type CaptureConfig struct {
	DurationS int    `yaml:"duration_s"` // clip length in seconds
	FPS       int    `yaml:"fps"`        // frames per second kept from the stream
	OutputDir string `yaml:"output_dir"` // where the GIF is written
	AssetsDir string `yaml:"assets_dir"` // seasonal mask/border images
	Optimize  bool   `yaml:"optimize"`   // run gifsicle on the result when available
}

// SlackConfig describes the destination channel. The bot token comes from
// the SLACK_BOT_TOKEN environment variable, or TokenFile as a fallback.
type SlackConfig struct {
	ChannelID string `yaml:"channel_id"`
	TokenFile string `yaml:"token_file"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel   int    `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO     bool   `yaml:"mock_gpio"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	DatabasePath string `yaml:"database_path"` // sqlite file for the theft event log
	LogFile      string `yaml:"log_file"`      // log file mirrored alongside stdout; "none" disables
}

// Config aggregates all application configuration.
type Config struct {
	Scale    ScaleConfig    `yaml:"scale"`
	Watch    WatchConfig    `yaml:"watch"`
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Slack    SlackConfig    `yaml:"slack"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Scale.DataPin <= 0 || cfg.Scale.ClockPin <= 0 {
		return nil, fmt.Errorf("scale.data_pin and scale.clock_pin are required")
	}
	if cfg.Scale.DataPin == cfg.Scale.ClockPin {
		return nil, fmt.Errorf("scale.data_pin and scale.clock_pin must differ, both are %d", cfg.Scale.DataPin)
	}
	if cfg.Scale.ReferenceUnit == 0 {
		return nil, fmt.Errorf("scale.reference_unit is required (raw counts per gram)")
	}
	if cfg.Camera.MAC == "" && cfg.Camera.Host == "" {
		return nil, fmt.Errorf("camera.mac or camera.host is required")
	}
	if cfg.Camera.MAC != "" && cfg.Camera.Host == "" && cfg.Camera.Network == "" {
		return nil, fmt.Errorf("camera.network is required for discovery by MAC")
	}
	if cfg.Slack.ChannelID == "" {
		return nil, fmt.Errorf("slack.channel_id is required")
	}
	if cfg.Watch.ItemFraction < 0 || cfg.Watch.ItemFraction > 1 {
		return nil, fmt.Errorf("watch.item_fraction must be between 0 and 1, got %.2f", cfg.Watch.ItemFraction)
	}
	if cfg.Watch.QuietStartHour < 0 || cfg.Watch.QuietStartHour > 23 {
		return nil, fmt.Errorf("watch.quiet_start_hour must be 0-23, got %d", cfg.Watch.QuietStartHour)
	}
	if cfg.Watch.QuietEndHour < 0 || cfg.Watch.QuietEndHour > 23 {
		return nil, fmt.Errorf("watch.quiet_end_hour must be 0-23, got %d", cfg.Watch.QuietEndHour)
	}

	// Default values for the scale
	if cfg.Scale.TareSamples <= 0 {
		cfg.Scale.TareSamples = 25
	}
	if cfg.Scale.ReadSamples <= 0 {
		cfg.Scale.ReadSamples = 15
	}

	// Default values for the watch loop
	if cfg.Watch.ItemWeightG <= 0 {
		cfg.Watch.ItemWeightG = 18.3 // one Tim Tam
	}
	if cfg.Watch.DeltaWeightG <= 0 {
		cfg.Watch.DeltaWeightG = 10
	}
	if cfg.Watch.ItemFraction == 0 {
		cfg.Watch.ItemFraction = 0.85 // 85% of a biscuit is close enough
	}
	if cfg.Watch.PollIntervalMs <= 0 {
		cfg.Watch.PollIntervalMs = 500
	}
	if cfg.Watch.QuietStartHour == 0 {
		cfg.Watch.QuietStartHour = 18 // office empties in the evening
	}
	if cfg.Watch.QuietEndHour == 0 {
		cfg.Watch.QuietEndHour = 4
	}

	// Default values for capture and delivery
	if cfg.Capture.DurationS <= 0 {
		cfg.Capture.DurationS = 4
	}
	if cfg.Capture.FPS <= 0 {
		cfg.Capture.FPS = 3
	}
	if cfg.Capture.OutputDir == "" {
		cfg.Capture.OutputDir = os.TempDir()
	}
	if cfg.Camera.Stream == "" {
		cfg.Camera.Stream = "stream1"
	}
	if cfg.Slack.TokenFile == "" {
		cfg.Slack.TokenFile = "bot_token.txt"
	}
	if cfg.Defaults.DatabasePath == "" {
		cfg.Defaults.DatabasePath = "timtamcam.db"
	}
	if cfg.Defaults.LogFile == "" {
		cfg.Defaults.LogFile = "timtamcam.log"
	}

	return &cfg, nil
}

// PollInterval returns the duration between two weight readings.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMs) * time.Millisecond
}

// CaptureDuration returns the length of the recorded clip.
func (c *Config) CaptureDuration() time.Duration {
	return time.Duration(c.Capture.DurationS) * time.Second
}
