package main

import (
	"fmt"
	"log"

	"github.com/banshee-data/rover.bridge/internal/actuator"
	"github.com/banshee-data/rover.bridge/internal/bridge"
	"github.com/banshee-data/rover.bridge/internal/config"
	"github.com/banshee-data/rover.bridge/internal/encoder"
	"github.com/banshee-data/rover.bridge/internal/gpio"
	"github.com/banshee-data/rover.bridge/internal/imu"
	"github.com/banshee-data/rover.bridge/internal/rangescan"
	"github.com/banshee-data/rover.bridge/internal/serialmux"
)

// overrides carries command-line values that replace config file settings
// when non-empty.
type overrides struct {
	DestIP      string
	BindIP      string
	DebugListen string
	JournalPath string
	EncoderMode string
	Actuator    string
	NoLidar     bool
	NoIMU       bool
}

func loadConfig(path string) (*config.BridgeConfig, error) {
	if path == "" {
		return config.DefaultBridgeConfig(), nil
	}
	return config.LoadBridgeConfig(path)
}

func applyOverrides(cfg *config.BridgeConfig, o overrides) {
	if o.DestIP != "" {
		cfg.DestinationIP = o.DestIP
	}
	if o.BindIP != "" {
		cfg.BindIP = o.BindIP
	}
	if o.DebugListen != "" {
		cfg.DebugListen = o.DebugListen
	}
	if o.JournalPath != "" {
		cfg.JournalPath = o.JournalPath
	}
	if o.EncoderMode != "" {
		cfg.Encoder.Mode = o.EncoderMode
	}
	if o.Actuator != "" {
		cfg.Actuator.Kind = o.Actuator
	}
	if o.NoLidar {
		cfg.Lidar.Enabled = false
	}
	if o.NoIMU {
		cfg.IMU.Enabled = false
	}
}

// openSink opens the motor controller. An unreachable controller degrades to
// a disabled sink so telemetry keeps flowing; the serial sink is also
// returned for its admin routes.
func openSink(cfg *config.BridgeConfig) (actuator.Sink, *actuator.SerialSink) {
	if cfg.Actuator.Kind == config.ActuatorDisabled {
		log.Printf("actuator disabled: motion commands will be parsed and discarded")
		return actuator.NewDisabledSink(), nil
	}
	s, err := actuator.OpenSerialSink(cfg.Actuator.Device, serialmux.PortOptions{BaudRate: cfg.Actuator.BaudRate}, cfg.Actuator.MaxSpeed)
	if err != nil {
		log.Printf("actuator unavailable, motion commands will be discarded: %v", err)
		return actuator.NewDisabledSink(), nil
	}
	return s, s
}

func geometry(w config.WheelConfig) encoder.Geometry {
	return encoder.Geometry{DiameterCM: w.DiameterCM, PulsesPerRev: w.PulsesPerRev, Reversed: w.Reversed}
}

// openEncoders builds the encoder tick source for the configured mode. Real
// mode also returns the wheels whose GPIO lines the bridge must watch.
func openEncoders(cfg *config.BridgeConfig) (encoder.TickSource, []bridge.Wheel, error) {
	if cfg.Encoder.Mode != config.EncoderModeReal {
		return encoder.NewSynthetic(int64(cfg.Encoder.SyntheticStep)), nil, nil
	}

	left := encoder.NewDecoder(geometry(cfg.Geometry.Left))
	right := encoder.NewDecoder(geometry(cfg.Geometry.Right))

	var opened []*gpio.SysfsLine
	closeAll := func() {
		for _, l := range opened {
			l.Close()
		}
	}
	open := func(pin int, edge gpio.Edge) (*gpio.SysfsLine, error) {
		l, err := gpio.Open(cfg.Encoder.GPIORoot, pin, edge)
		if err != nil {
			closeAll()
			return nil, err
		}
		opened = append(opened, l)
		return l, nil
	}

	var wheels []bridge.Wheel
	for _, w := range []struct {
		name string
		pins config.PinPair
		dec  *encoder.Decoder
	}{
		{"left", cfg.Encoder.Left, left},
		{"right", cfg.Encoder.Right, right},
	} {
		a, err := open(w.pins.A, gpio.EdgeBoth)
		if err != nil {
			return nil, nil, fmt.Errorf("%s wheel channel A: %w", w.name, err)
		}
		b, err := open(w.pins.B, gpio.EdgeNone)
		if err != nil {
			return nil, nil, fmt.Errorf("%s wheel channel B: %w", w.name, err)
		}
		wheels = append(wheels, bridge.Wheel{Name: w.name, A: a, B: b, Decoder: w.dec})
	}
	return encoder.NewReal(left, right), wheels, nil
}

// openIMU returns nil when the IMU is disabled or cannot be configured; the
// inertial stream is then not started.
func openIMU(cfg *config.BridgeConfig) bridge.InertialSource {
	if !cfg.IMU.Enabled {
		return nil
	}
	bus, err := imu.OpenI2C(cfg.IMU.Bus)
	if err != nil {
		log.Printf("[IMU] disabled: %v", err)
		return nil
	}
	m := imu.New(bus, uint16(cfg.IMU.Address))
	if err := m.Configure(); err != nil {
		log.Printf("[IMU] disabled: %v", err)
		m.Close()
		return nil
	}
	return m
}

// openLidar returns nil when the lidar is disabled or does not answer the
// scan request.
func openLidar(cfg *config.BridgeConfig) bridge.ScanSource {
	if !cfg.Lidar.Enabled {
		return nil
	}
	l, err := rangescan.Open(serialmux.OpenPort, cfg.Lidar.Device, serialmux.PortOptions{BaudRate: cfg.Lidar.BaudRate})
	if err != nil {
		log.Printf("[LIDAR] disabled: %v", err)
		return nil
	}
	if err := l.Start(); err != nil {
		log.Printf("[LIDAR] disabled: %v", err)
		l.Close()
		return nil
	}
	return l
}
