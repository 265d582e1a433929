package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Encoder telemetry producer modes.
const (
	EncoderModeReal      = "real"
	EncoderModeSynthetic = "synthetic"
)

// Actuator sink kinds.
const (
	ActuatorSerial   = "serial"
	ActuatorDisabled = "disabled"
)

// BridgeConfig is the process-wide configuration, fixed at startup. Fields
// omitted from a JSON file keep the values from DefaultBridgeConfig.
type BridgeConfig struct {
	// DestinationIP receives all outbound telemetry datagrams.
	DestinationIP string `json:"destination_ip"`
	// BindIP is the local address the motion command socket binds to.
	BindIP string `json:"bind_ip"`

	Ports    PortsConfig    `json:"ports"`
	Geometry GeometryConfig `json:"geometry"`
	Encoder  EncoderConfig  `json:"encoder"`
	Lidar    LidarConfig    `json:"lidar"`
	IMU      IMUConfig      `json:"imu"`
	Actuator ActuatorConfig `json:"actuator"`

	// PollInterval bounds how long the command intake waits for a datagram
	// before re-checking for shutdown, as a duration string like "50ms".
	PollInterval string `json:"poll_interval"`
	// StatsInterval is the period of the per-stream stats log line.
	StatsInterval string `json:"stats_interval"`

	// DebugListen serves the /debug/ HTTP surface when non-empty.
	DebugListen string `json:"debug_listen,omitempty"`
	// JournalPath enables the sqlite run journal when non-empty.
	JournalPath string `json:"journal_path,omitempty"`
}

// PortsConfig holds one UDP port per stream.
type PortsConfig struct {
	Motion   int `json:"motion"`
	Lidar    int `json:"lidar"`
	Inertial int `json:"inertial"`
	Encoder  int `json:"encoder"`
}

// GeometryConfig holds per-wheel geometry so wheels of differing diameter
// each get their own distance-per-pulse.
type GeometryConfig struct {
	Left  WheelConfig `json:"left"`
	Right WheelConfig `json:"right"`
}

// WheelConfig describes one wheel and its encoder.
type WheelConfig struct {
	DiameterCM   float64 `json:"diameter_cm"`
	PulsesPerRev int     `json:"pulses_per_rev"`
	// Reversed negates the tick sign for a mirror-mounted encoder.
	Reversed bool `json:"reversed"`
}

// EncoderConfig selects and configures the encoder telemetry producer.
type EncoderConfig struct {
	Mode string `json:"mode"`
	// Interval is the encoder telemetry publish period.
	Interval string `json:"interval"`
	// SyntheticStep is added to each wheel per interval in synthetic mode.
	SyntheticStep int `json:"synthetic_step"`
	// GPIORoot is the sysfs GPIO class directory.
	GPIORoot string  `json:"gpio_root"`
	Left     PinPair `json:"left"`
	Right    PinPair `json:"right"`
}

// PinPair names the GPIO lines carrying channels A and B of one encoder.
type PinPair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// LidarConfig configures the range-scan source.
type LidarConfig struct {
	Enabled  bool   `json:"enabled"`
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
}

// IMUConfig configures the inertial source.
type IMUConfig struct {
	Enabled bool   `json:"enabled"`
	Bus     string `json:"bus"`
	Address int    `json:"address"`
	// Interval is the pacing pause between inertial samples.
	Interval string `json:"interval"`
}

// ActuatorConfig configures the motor actuator sink.
type ActuatorConfig struct {
	Kind     string `json:"kind"`
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
	// MaxSpeed clamps the magnitude of every velocity sent to the motors.
	MaxSpeed int `json:"max_speed"`
}

// DefaultBridgeConfig returns the configuration used when no file is given.
func DefaultBridgeConfig() *BridgeConfig {
	wheel := WheelConfig{DiameterCM: 8.65, PulsesPerRev: 397}
	left := wheel
	left.Reversed = true

	return &BridgeConfig{
		DestinationIP: "192.168.1.102",
		BindIP:        "0.0.0.0",
		Ports: PortsConfig{
			Motion:   8100,
			Lidar:    8101,
			Inertial: 8102,
			Encoder:  8103,
		},
		Geometry: GeometryConfig{Left: left, Right: wheel},
		Encoder: EncoderConfig{
			Mode:          EncoderModeSynthetic,
			Interval:      "100ms",
			SyntheticStep: 2,
			GPIORoot:      "/sys/class/gpio",
			Left:          PinPair{A: 27, B: 22},
			Right:         PinPair{A: 17, B: 4},
		},
		Lidar: LidarConfig{
			Enabled:  true,
			Device:   "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		IMU: IMUConfig{
			Enabled:  true,
			Bus:      "/dev/i2c-1",
			Address:  0x68,
			Interval: "100ms",
		},
		Actuator: ActuatorConfig{
			Kind:     ActuatorSerial,
			Device:   "/dev/ttyAMA0",
			BaudRate: 115200,
			MaxSpeed: 100,
		},
		PollInterval:  "50ms",
		StatsInterval: "1m",
	}
}

// LoadBridgeConfig loads a BridgeConfig from a JSON file on top of the
// defaults. The file must have a .json extension and be under 1MB.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultBridgeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *BridgeConfig) Validate() error {
	if net.ParseIP(c.DestinationIP) == nil {
		return fmt.Errorf("destination_ip %q is not an IP address", c.DestinationIP)
	}
	if net.ParseIP(c.BindIP) == nil {
		return fmt.Errorf("bind_ip %q is not an IP address", c.BindIP)
	}

	for name, port := range map[string]int{
		"motion":   c.Ports.Motion,
		"lidar":    c.Ports.Lidar,
		"inertial": c.Ports.Inertial,
		"encoder":  c.Ports.Encoder,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("ports.%s must be between 1 and 65535, got %d", name, port)
		}
	}

	for name, w := range map[string]WheelConfig{"left": c.Geometry.Left, "right": c.Geometry.Right} {
		if w.DiameterCM <= 0 {
			return fmt.Errorf("geometry.%s.diameter_cm must be positive, got %f", name, w.DiameterCM)
		}
		if w.PulsesPerRev <= 0 {
			return fmt.Errorf("geometry.%s.pulses_per_rev must be positive, got %d", name, w.PulsesPerRev)
		}
	}

	switch c.Encoder.Mode {
	case EncoderModeReal, EncoderModeSynthetic:
	default:
		return fmt.Errorf("encoder.mode must be %q or %q, got %q", EncoderModeReal, EncoderModeSynthetic, c.Encoder.Mode)
	}

	switch c.Actuator.Kind {
	case ActuatorSerial, ActuatorDisabled:
	default:
		return fmt.Errorf("actuator.kind must be %q or %q, got %q", ActuatorSerial, ActuatorDisabled, c.Actuator.Kind)
	}
	if c.Actuator.MaxSpeed <= 0 {
		return fmt.Errorf("actuator.max_speed must be positive, got %d", c.Actuator.MaxSpeed)
	}

	if c.Lidar.Enabled && c.Lidar.Device == "" {
		return fmt.Errorf("lidar.device is required when the lidar is enabled")
	}
	if c.IMU.Enabled && c.IMU.Bus == "" {
		return fmt.Errorf("imu.bus is required when the IMU is enabled")
	}

	for name, d := range map[string]string{
		"poll_interval":    c.PollInterval,
		"stats_interval":   c.StatsInterval,
		"encoder.interval": c.Encoder.Interval,
		"imu.interval":     c.IMU.Interval,
	} {
		if d == "" {
			continue
		}
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, d, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// DestinationAddr returns "ip:port" for an outbound stream port.
func (c *BridgeConfig) DestinationAddr(port int) string {
	return net.JoinHostPort(c.DestinationIP, fmt.Sprint(port))
}

// MotionAddr returns the bind address of the motion command socket.
func (c *BridgeConfig) MotionAddr() string {
	return net.JoinHostPort(c.BindIP, fmt.Sprint(c.Ports.Motion))
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetPollInterval returns the command intake receive deadline.
func (c *BridgeConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 50*time.Millisecond)
}

// GetStatsInterval returns the stats logging period.
func (c *BridgeConfig) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, time.Minute)
}

// GetEncoderInterval returns the encoder telemetry publish period.
func (c *BridgeConfig) GetEncoderInterval() time.Duration {
	return parseDurationOr(c.Encoder.Interval, 100*time.Millisecond)
}

// GetIMUInterval returns the inertial pacing pause.
func (c *BridgeConfig) GetIMUInterval() time.Duration {
	return parseDurationOr(c.IMU.Interval, 100*time.Millisecond)
}
