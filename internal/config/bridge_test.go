package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBridgeConfig(t *testing.T) {
	cfg := DefaultBridgeConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8100, cfg.Ports.Motion)
	assert.Equal(t, 8101, cfg.Ports.Lidar)
	assert.Equal(t, 8102, cfg.Ports.Inertial)
	assert.Equal(t, 8103, cfg.Ports.Encoder)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Lidar.Device)
	assert.Equal(t, 397, cfg.Geometry.Right.PulsesPerRev)
	assert.True(t, cfg.Geometry.Left.Reversed)
	assert.False(t, cfg.Geometry.Right.Reversed)
	assert.Equal(t, EncoderModeSynthetic, cfg.Encoder.Mode)

	assert.Equal(t, 50*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.GetIMUInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.GetEncoderInterval())
	assert.Equal(t, time.Minute, cfg.GetStatsInterval())
}

func TestLoadBridgeConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	testJSON := `{
  "destination_ip": "10.0.0.5",
  "ports": {"motion": 9100, "lidar": 9101, "inertial": 9102, "encoder": 9103},
  "geometry": {"right": {"diameter_cm": 6.8, "pulses_per_rev": 397}},
  "encoder": {"mode": "real"},
  "poll_interval": "20ms"
}`
	require.NoError(t, os.WriteFile(path, []byte(testJSON), 0o644))

	cfg, err := LoadBridgeConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.DestinationIP)
	assert.Equal(t, "0.0.0.0", cfg.BindIP, "unset fields keep defaults")
	assert.Equal(t, 6.8, cfg.Geometry.Right.DiameterCM)
	assert.Equal(t, 8.65, cfg.Geometry.Left.DiameterCM)
	assert.Equal(t, EncoderModeReal, cfg.Encoder.Mode)
	assert.Equal(t, 17, cfg.Encoder.Right.A, "nested defaults survive a partial object")
	assert.Equal(t, 20*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, "10.0.0.5:9102", cfg.DestinationAddr(cfg.Ports.Inertial))
	assert.Equal(t, "0.0.0.0:9100", cfg.MotionAddr())
}

func TestLoadBridgeConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("bridge.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(dir, "absent.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"bad ip", write("ip.json", `{"destination_ip": "robot"}`), "destination_ip"},
		{"bad port", write("port.json", `{"ports": {"motion": 0}}`), "ports.motion"},
		{"bad geometry", write("geo.json", `{"geometry": {"left": {"diameter_cm": 0, "pulses_per_rev": 10}}}`), "diameter_cm"},
		{"bad mode", write("mode.json", `{"encoder": {"mode": "fake"}}`), "encoder.mode"},
		{"bad actuator", write("act.json", `{"actuator": {"kind": "pwm"}}`), "actuator.kind"},
		{"bad duration", write("dur.json", `{"poll_interval": "soon"}`), "poll_interval"},
		{"negative duration", write("neg.json", `{"imu": {"interval": "-1s"}}`), "imu.interval"},
		{"lidar without device", write("lidar.json", `{"lidar": {"enabled": true, "device": ""}}`), "lidar.device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBridgeConfig(tt.path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestLoadBridgeConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))

	_, err := LoadBridgeConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestGetters_FallBackOnGarbage(t *testing.T) {
	cfg := &BridgeConfig{PollInterval: "nope", StatsInterval: "-5s"}
	assert.Equal(t, 50*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, time.Minute, cfg.GetStatsInterval())
}
