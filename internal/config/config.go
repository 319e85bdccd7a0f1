package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDDevice  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDrift   string

	// Topics
	TopicPose  string
	TopicTime  string
	TopicField string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// IMU Sample Rate Configuration
	IMUDLPFConfig    byte // Digital Low Pass Filter configuration (0-7)
	IMUSampleRateDiv byte // Sample rate divider (output rate = internal rate / (1 + div))
	IMUAccelDLPF     byte // Accelerometer DLPF configuration (0-7)

	// Orientation filter
	IMUFilterBeta float64 // Madgwick filter gain

	// Calibration
	CalibrationSamples int
	CalibrationTimeout int // milliseconds

	// Rotary encoder
	EncoderCLKPin       string
	EncoderDTPin        string
	EncoderScanInterval int // milliseconds, GPIO phase sampling rate
	EncoderPollInterval int // milliseconds, smoothed delta poll rate
	EncoderSmoothing    int // raw counts per emitted step

	// Button
	ButtonPin      string
	ButtonDebounce int // milliseconds

	// Clock
	ClockTickInterval int    // milliseconds
	ClockStart        string // "2006-01-02 15:04:05", empty means host time

	// Timing
	IMUSampleInterval int // milliseconds
	TelemetryInterval int // milliseconds

	// Web Server
	WebServerPort int

	// GPS (drift_check tool)
	GPSSerialPort string
	GPSBaudRate   int

	// Display
	DisplayUpdateInterval int    // milliseconds
	DisplayContent        string // what to show: "clock" or "attitude"

	// Heartbeat LED
	HeartbeatPin      string
	HeartbeatInterval int // milliseconds

	// Development
	UseMockOrientation bool // synthesize poses instead of reading the IMU
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_DEVICE":
		c.MQTTClientIDDevice = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DRIFT":
		c.MQTTClientIDDrift = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_TIME":
		c.TopicTime = value
	case "TOPIC_FIELD":
		c.TopicField = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// IMU Sample Rate Configuration
	case "IMU_DLPF_CFG":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_DLPF_CFG %q: %w", value, err)
		}
		if val < 0 || val > 7 {
			return fmt.Errorf("IMU_DLPF_CFG must be 0-7, got %d", val)
		}
		c.IMUDLPFConfig = byte(val)
	case "IMU_SMPLRT_DIV":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SMPLRT_DIV %q: %w", value, err)
		}
		if val < 0 || val > 255 {
			return fmt.Errorf("IMU_SMPLRT_DIV must be 0-255, got %d", val)
		}
		c.IMUSampleRateDiv = byte(val)
	case "IMU_ACCEL_DLPF":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_DLPF %q: %w", value, err)
		}
		if val < 0 || val > 7 {
			return fmt.Errorf("IMU_ACCEL_DLPF must be 0-7, got %d", val)
		}
		c.IMUAccelDLPF = byte(val)

	// Orientation filter
	case "IMU_FILTER_BETA":
		beta, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid IMU_FILTER_BETA %q: %w", value, err)
		}
		if beta <= 0 {
			return fmt.Errorf("IMU_FILTER_BETA must be positive, got %g", beta)
		}
		c.IMUFilterBeta = beta

	// Calibration
	case "CALIBRATION_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_SAMPLES %q: %w", value, err)
		}
		if val < 1 {
			return fmt.Errorf("CALIBRATION_SAMPLES must be at least 1, got %d", val)
		}
		c.CalibrationSamples = val
	case "CALIBRATION_TIMEOUT":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_TIMEOUT %q: %w", value, err)
		}
		c.CalibrationTimeout = val

	// Rotary encoder
	case "ENCODER_CLK_PIN":
		c.EncoderCLKPin = value
	case "ENCODER_DT_PIN":
		c.EncoderDTPin = value
	case "ENCODER_SCAN_INTERVAL":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ENCODER_SCAN_INTERVAL %q: %w", value, err)
		}
		c.EncoderScanInterval = val
	case "ENCODER_POLL_INTERVAL":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ENCODER_POLL_INTERVAL %q: %w", value, err)
		}
		c.EncoderPollInterval = val
	case "ENCODER_SMOOTHING":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ENCODER_SMOOTHING %q: %w", value, err)
		}
		if val < 1 {
			return fmt.Errorf("ENCODER_SMOOTHING must be at least 1, got %d", val)
		}
		c.EncoderSmoothing = val

	// Button
	case "BUTTON_PIN":
		c.ButtonPin = value
	case "BUTTON_DEBOUNCE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BUTTON_DEBOUNCE %q: %w", value, err)
		}
		c.ButtonDebounce = val

	// Clock
	case "CLOCK_TICK_INTERVAL":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CLOCK_TICK_INTERVAL %q: %w", value, err)
		}
		c.ClockTickInterval = val
	case "CLOCK_START":
		if _, err := time.Parse("2006-01-02 15:04:05", value); err != nil {
			return fmt.Errorf("invalid CLOCK_START %q (want \"2006-01-02 15:04:05\"): %w", value, err)
		}
		c.ClockStart = value

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval
	case "TELEMETRY_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TELEMETRY_INTERVAL %q: %w", value, err)
		}
		c.TelemetryInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_CONTENT":
		if value != "clock" && value != "attitude" {
			return fmt.Errorf("DISPLAY_CONTENT must be \"clock\" or \"attitude\", got %q", value)
		}
		c.DisplayContent = value

	// Heartbeat LED
	case "HEARTBEAT_PIN":
		c.HeartbeatPin = value
	case "HEARTBEAT_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HEARTBEAT_INTERVAL %q: %w", value, err)
		}
		c.HeartbeatInterval = interval

	// Development
	case "USE_MOCK_ORIENTATION":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid USE_MOCK_ORIENTATION %q: %w", value, err)
		}
		c.UseMockOrientation = b

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.IMUSPIDevice == "" && !c.UseMockOrientation {
		return fmt.Errorf("IMU_SPI_DEVICE is required")
	}
	if c.IMUSampleInterval == 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	if c.EncoderSmoothing == 0 {
		return fmt.Errorf("ENCODER_SMOOTHING is required")
	}
	if c.ButtonDebounce == 0 {
		return fmt.Errorf("BUTTON_DEBOUNCE is required")
	}
	if c.ClockTickInterval == 0 {
		return fmt.Errorf("CLOCK_TICK_INTERVAL is required")
	}
	if c.DisplayUpdateInterval == 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL is required")
	}
	if c.DisplayContent == "" {
		return fmt.Errorf("DISPLAY_CONTENT is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
