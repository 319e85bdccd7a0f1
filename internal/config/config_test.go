package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
# comment lines and blanks are skipped
MQTT_BROKER=tcp://localhost:1883
IMU_SPI_DEVICE=/dev/spidev0.0
IMU_CS_PIN=GPIO8
IMU_ACCEL_RANGE=1
IMU_GYRO_RANGE=1
IMU_DLPF_CFG=2
IMU_SMPLRT_DIV=9
IMU_ACCEL_DLPF=2
IMU_FILTER_BETA=0.1
IMU_SAMPLE_INTERVAL=10
CALIBRATION_SAMPLES=100
CALIBRATION_TIMEOUT=3000
ENCODER_CLK_PIN=GPIO17
ENCODER_DT_PIN=GPIO27
ENCODER_SCAN_INTERVAL=1
ENCODER_POLL_INTERVAL=100
ENCODER_SMOOTHING=4
BUTTON_PIN=GPIO22
BUTTON_DEBOUNCE=10
CLOCK_TICK_INTERVAL=30
CLOCK_START=2026-01-01 12:00:00
DISPLAY_UPDATE_INTERVAL=100
DISPLAY_CONTENT=clock
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, byte(1), cfg.IMUAccelRange)
	assert.Equal(t, byte(1), cfg.IMUGyroRange)
	assert.Equal(t, 0.1, cfg.IMUFilterBeta)
	assert.Equal(t, 100, cfg.CalibrationSamples)
	assert.Equal(t, 4, cfg.EncoderSmoothing)
	assert.Equal(t, 10, cfg.ButtonDebounce)
	assert.Equal(t, 30, cfg.ClockTickInterval)
	assert.Equal(t, "2026-01-01 12:00:00", cfg.ClockStart)
	assert.Equal(t, "clock", cfg.DisplayContent)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"NO_SUCH_KEY=1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"accel range", "IMU_ACCEL_RANGE=4"},
		{"gyro range", "IMU_GYRO_RANGE=-1"},
		{"smoothing", "ENCODER_SMOOTHING=0"},
		{"display content", "DISPLAY_CONTENT=gps"},
		{"clock start format", "CLOCK_START=01/01/2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, validConfig+tt.line+"\n"))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresBroker(t *testing.T) {
	content := `
IMU_SPI_DEVICE=/dev/spidev0.0
IMU_SAMPLE_INTERVAL=10
ENCODER_SMOOTHING=4
BUTTON_DEBOUNCE=10
CLOCK_TICK_INTERVAL=30
DISPLAY_UPDATE_INTERVAL=100
DISPLAY_CONTENT=clock
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER")
}

func TestMockModeSkipsSPIDevice(t *testing.T) {
	content := `
MQTT_BROKER=tcp://localhost:1883
USE_MOCK_ORIENTATION=true
IMU_SAMPLE_INTERVAL=10
ENCODER_SMOOTHING=4
BUTTON_DEBOUNCE=10
CLOCK_TICK_INTERVAL=30
DISPLAY_UPDATE_INTERVAL=100
DISPLAY_CONTENT=attitude
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.True(t, cfg.UseMockOrientation)
}
