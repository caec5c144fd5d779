package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvSerialPort   = "PATHPLANNER_SERIAL_PORT"
	EnvSerialBaud   = "PATHPLANNER_SERIAL_BAUD"
	EnvLinkProvider = "PATHPLANNER_LINK_PROVIDER"
)

// Config holds the application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"db"`
	Server ServerConfig `yaml:"server"`
	Paths  PathsConfig  `yaml:"paths"`
	Spline SplineConfig `yaml:"spline"`
	Sim    SimConfig    `yaml:"sim"`
	Link   LinkConfig   `yaml:"link"`
	Mock   MockConfig   `yaml:"mock"`
	Jobs   JobsConfig   `yaml:"jobs"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	// Trace enables per-line logging of raw link traffic at DEBUG.
	Trace bool `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// PathsConfig selects where the path collection is persisted.
type PathsConfig struct {
	Backend     string `yaml:"backend"` // "file", "sqlite"
	File        string `yaml:"file"`    // empty: ~/.pathplanner_paths.json
	SeedDefault bool   `yaml:"seed_default"`
	// ImportDirs are polled for CSV files that become paths.
	ImportDirs []string `yaml:"import_dirs"`
}

// SplineConfig holds interpolation settings.
type SplineConfig struct {
	Algorithm    string `yaml:"algorithm"`
	BezierSteps  int    `yaml:"bezier_steps"`
	CatmullSteps int    `yaml:"catmull_steps"`
}

// SimConfig holds playback settings.
type SimConfig struct {
	StepDuration Duration `yaml:"step_duration"`
	Autoplay     bool     `yaml:"autoplay"`
}

// LinkConfig holds settings for the vehicle link.
type LinkConfig struct {
	Provider        string `yaml:"provider"` // "serial", "tcp", "mock", "none"
	Port            string `yaml:"port"`
	Address         string `yaml:"address"` // host:port dialled by the tcp provider
	DialRetries     int    `yaml:"dial_retries"`
	Baud            int    `yaml:"baud"`
	EventBuffer     int    `yaml:"event_buffer"`
	RecordTelemetry bool   `yaml:"record_telemetry"`
	// TrackSize caps the in-memory telemetry track served as GeoJSON.
	TrackSize int `yaml:"track_size"`
	// Geofences lists GeoJSON files with polygon zones to warn about.
	Geofences []string `yaml:"geofences"`
}

// MockConfig holds settings for the in-process mock vehicle.
type MockConfig struct {
	HomeLat           float64  `yaml:"home_lat"`
	HomeLon           float64  `yaml:"home_lon"`
	HomeAlt           float64  `yaml:"home_alt"`
	UnitDistance      Distance `yaml:"unit_distance"`
	StepDuration      Duration `yaml:"step_duration"`
	TelemetryInterval Duration `yaml:"telemetry_interval"`
	GarbageRate       float64  `yaml:"garbage_rate"`
}

// JobsConfig holds periodic housekeeping settings.
type JobsConfig struct {
	StatusInterval     Duration `yaml:"status_interval"`
	PruneInterval      Duration `yaml:"prune_interval"`
	TelemetryRetention Duration `yaml:"telemetry_retention"`
	ImportInterval     Duration `yaml:"import_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/pathplanner.db",
		},
		Server: ServerConfig{
			Address: "localhost:1925",
		},
		Paths: PathsConfig{
			Backend:     "file",
			SeedDefault: true,
		},
		Spline: SplineConfig{
			Algorithm:    "catmull-rom",
			BezierSteps:  100,
			CatmullSteps: 40,
		},
		Sim: SimConfig{
			StepDuration: Duration(20 * time.Millisecond),
			Autoplay:     true,
		},
		Link: LinkConfig{
			Provider:    "mock",
			Address:     "localhost:5760",
			DialRetries: 3,
			Baud:        9600,
			EventBuffer: 64,
			TrackSize:   2000,
		},
		Mock: MockConfig{
			HomeLat:           51.5033,
			HomeLon:           -0.1195,
			HomeAlt:           320,
			UnitDistance:      1,
			StepDuration:      Duration(100 * time.Millisecond),
			TelemetryInterval: Duration(1 * time.Second),
		},
		Jobs: JobsConfig{
			StatusInterval:     Duration(1 * time.Minute),
			PruneInterval:      Duration(1 * time.Hour),
			TelemetryRetention: Duration(7 * Day),
			ImportInterval:     Duration(2 * time.Second),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
// Environment variables are applied afterwards and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	expandPaths(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var windowsVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	p = windowsVar.ReplaceAllString(p, "$${$1}")
	return os.ExpandEnv(p)
}

func expandPaths(cfg *Config) {
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)
	cfg.Log.Events.Path = expandPath(cfg.Log.Events.Path)
	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Paths.File = expandPath(cfg.Paths.File)
	for i, d := range cfg.Paths.ImportDirs {
		cfg.Paths.ImportDirs[i] = expandPath(d)
	}
	for i, f := range cfg.Link.Geofences {
		cfg.Link.Geofences[i] = expandPath(f)
	}
}

// applyEnv fills the serial port from the environment when the file leaves
// it empty. Provider and baud rate from the environment always win.
func applyEnv(cfg *Config) error {
	if cfg.Link.Port == "" {
		if port := os.Getenv(EnvSerialPort); port != "" {
			cfg.Link.Port = port
		}
	}
	if v := os.Getenv(EnvSerialBaud); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSerialBaud, v, err)
		}
		cfg.Link.Baud = baud
	}
	if v := os.Getenv(EnvLinkProvider); v != "" {
		cfg.Link.Provider = v
	}
	return nil
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	switch c.Paths.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid paths.backend '%s': must be 'file' or 'sqlite'", c.Paths.Backend)
	}
	switch c.Spline.Algorithm {
	case "", "catmull-rom", "bezier":
	default:
		return fmt.Errorf("invalid spline.algorithm '%s': must be 'catmull-rom' or 'bezier'", c.Spline.Algorithm)
	}
	switch c.Link.Provider {
	case "serial", "tcp", "mock", "none":
	default:
		return fmt.Errorf("invalid link.provider '%s': must be 'serial', 'tcp', 'mock' or 'none'", c.Link.Provider)
	}
	if c.Link.Provider == "tcp" && c.Link.Address == "" {
		return fmt.Errorf("link.address is required for the tcp provider")
	}
	if c.Link.DialRetries < 0 {
		return fmt.Errorf("invalid link.dial_retries %d", c.Link.DialRetries)
	}
	if c.Link.Baud <= 0 {
		return fmt.Errorf("invalid link.baud %d", c.Link.Baud)
	}
	if c.Link.EventBuffer < 1 {
		return fmt.Errorf("invalid link.event_buffer %d: must be at least 1", c.Link.EventBuffer)
	}
	if c.Link.TrackSize < 0 {
		return fmt.Errorf("invalid link.track_size %d", c.Link.TrackSize)
	}
	if c.Sim.StepDuration <= 0 {
		return fmt.Errorf("invalid sim.step_duration %v", c.Sim.StepDuration.Std())
	}
	if c.Mock.GarbageRate < 0 || c.Mock.GarbageRate > 1 {
		return fmt.Errorf("invalid mock.garbage_rate %v: must be within [0,1]", c.Mock.GarbageRate)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# PathPlanner Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: cm, m (meters), km (kilometers), nm (nautical miles), ft
# Environment overrides: ` + EnvSerialPort + `, ` + EnvSerialBaud + `, ` + EnvLinkProvider + `

`)
	data = append(header, data...)

	// Inject comments for Enum fields
	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: file, sqlite\n${1}backend:"))

	reAlgorithm := regexp.MustCompile(`(?m)^(\s+)algorithm:`)
	data = reAlgorithm.ReplaceAll(data, []byte("${1}# Options: catmull-rom, bezier\n${1}algorithm:"))

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: serial, tcp, mock, none\n${1}provider:"))

	reStep := regexp.MustCompile(`(?m)^(\s+)step_duration:`)
	data = reStep.ReplaceAll(data, []byte("${1}# Fixed time per spline sample; longer paths play back longer\n${1}step_duration:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
