// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDProducer   string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string

	// Topics
	TopicEMGLeft     string
	TopicEMGRight    string
	TopicAxes        string
	TopicCalibration string
	TopicCommand     string
	TopicSession     string

	// EMG band hardware
	EMGLeftSerialPort  string
	EMGRightSerialPort string
	EMGBaudRate        int

	// Timing
	ControlTickInterval int // milliseconds
	MockFrameInterval   int // milliseconds

	// Calibration
	CaptureDuration  int    // milliseconds per phase
	RestartMode      string // "auto" or "manual"
	RestartDelay     int    // milliseconds
	RegistrySentinel string // "neg_inf" or "zero"

	// Mapping
	MaxSpeed        float64
	SmoothingFactor float64 // (0, 1]
	DeadZone        float64
	DeadZoneMode    string // "scaled" or "raw"
	NormalizeMode   string // "fixed" or "calibrated"
	NormalizeMax    float64
	GainRightUp     float64
	GainRightDown   float64
	GainLeftLeft    float64
	GainLeftRight   float64

	// Session
	SessionDuration int // seconds

	// Web Server
	WebServerPort int
}

// Default returns the configuration used for every key a file omits.
func Default() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDController: "emg-controller",
		MQTTClientIDProducer:   "emg-band-producer",
		MQTTClientIDConsole:    "emg-console-subscriber",
		MQTTClientIDWeb:        "emg-web-subscriber",

		TopicEMGLeft:     "emg/envelope/left",
		TopicEMGRight:    "emg/envelope/right",
		TopicAxes:        "emg/control/axes",
		TopicCalibration: "emg/control/calibration",
		TopicCommand:     "emg/control/command",
		TopicSession:     "emg/control/session",

		EMGBaudRate: 115200,

		ControlTickInterval: 20,
		MockFrameInterval:   20,

		CaptureDuration:  5000,
		RestartMode:      "auto",
		RestartDelay:     3000,
		RegistrySentinel: "neg_inf",

		MaxSpeed:        10,
		SmoothingFactor: 0.1,
		DeadZone:        0.05,
		DeadZoneMode:    "scaled",
		NormalizeMode:   "fixed",
		NormalizeMax:    1,
		GainRightUp:     1,
		GainRightDown:   1,
		GainLeftLeft:    1,
		GainLeftRight:   1,

		SessionDuration: 60,

		WebServerPort: 8080,
	}
}

// Package-level unexported variables for the read-only process config:
//   - globalConfig is set once by InitGlobal from a cmd main and never
//     modified afterwards; library packages receive values explicitly.
//   - configOnce ensures InitGlobal() only runs once.
//   - configMu guards the pointer for readers on other goroutines.
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

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_EMG_LEFT":
		c.TopicEMGLeft = value
	case "TOPIC_EMG_RIGHT":
		c.TopicEMGRight = value
	case "TOPIC_AXES":
		c.TopicAxes = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_SESSION":
		c.TopicSession = value

	// EMG band hardware
	case "EMG_LEFT_SERIAL_PORT":
		c.EMGLeftSerialPort = value
	case "EMG_RIGHT_SERIAL_PORT":
		c.EMGRightSerialPort = value
	case "EMG_BAUD_RATE":
		c.EMGBaudRate, err = parseInt(key, value)

	// Timing
	case "CONTROL_TICK_INTERVAL":
		c.ControlTickInterval, err = parseInt(key, value)
	case "MOCK_FRAME_INTERVAL":
		c.MockFrameInterval, err = parseInt(key, value)

	// Calibration
	case "CAPTURE_DURATION":
		c.CaptureDuration, err = parseInt(key, value)
	case "RESTART_MODE":
		if value != "auto" && value != "manual" {
			return fmt.Errorf("RESTART_MODE must be auto or manual, got %q", value)
		}
		c.RestartMode = value
	case "RESTART_DELAY":
		c.RestartDelay, err = parseInt(key, value)
	case "REGISTRY_SENTINEL":
		if value != "neg_inf" && value != "zero" {
			return fmt.Errorf("REGISTRY_SENTINEL must be neg_inf or zero, got %q", value)
		}
		c.RegistrySentinel = value

	// Mapping
	case "MAX_SPEED":
		c.MaxSpeed, err = parseFloat(key, value)
	case "SMOOTHING_FACTOR":
		c.SmoothingFactor, err = parseFloat(key, value)
	case "DEAD_ZONE":
		c.DeadZone, err = parseFloat(key, value)
	case "DEAD_ZONE_MODE":
		if value != "scaled" && value != "raw" {
			return fmt.Errorf("DEAD_ZONE_MODE must be scaled or raw, got %q", value)
		}
		c.DeadZoneMode = value
	case "NORMALIZE_MODE":
		if value != "fixed" && value != "calibrated" {
			return fmt.Errorf("NORMALIZE_MODE must be fixed or calibrated, got %q", value)
		}
		c.NormalizeMode = value
	case "NORMALIZE_MAX":
		c.NormalizeMax, err = parseFloat(key, value)
	case "GAIN_RIGHT_UP":
		c.GainRightUp, err = parseFloat(key, value)
	case "GAIN_RIGHT_DOWN":
		c.GainRightDown, err = parseFloat(key, value)
	case "GAIN_LEFT_LEFT":
		c.GainLeftLeft, err = parseFloat(key, value)
	case "GAIN_LEFT_RIGHT":
		c.GainLeftRight, err = parseFloat(key, value)

	// Session
	case "SESSION_DURATION":
		c.SessionDuration, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicEMGLeft == "" || c.TopicEMGRight == "" {
		return fmt.Errorf("TOPIC_EMG_LEFT and TOPIC_EMG_RIGHT are required")
	}
	if c.TopicEMGLeft == c.TopicEMGRight {
		return fmt.Errorf("TOPIC_EMG_LEFT and TOPIC_EMG_RIGHT must differ, both are %q", c.TopicEMGLeft)
	}
	if c.ControlTickInterval <= 0 {
		return fmt.Errorf("CONTROL_TICK_INTERVAL must be positive, got %d", c.ControlTickInterval)
	}
	if c.MockFrameInterval <= 0 {
		return fmt.Errorf("MOCK_FRAME_INTERVAL must be positive, got %d", c.MockFrameInterval)
	}
	if c.CaptureDuration <= 0 {
		return fmt.Errorf("CAPTURE_DURATION must be positive, got %d", c.CaptureDuration)
	}
	if c.RestartDelay < 0 {
		return fmt.Errorf("RESTART_DELAY must be >= 0, got %d", c.RestartDelay)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("MAX_SPEED must be positive, got %g", c.MaxSpeed)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("SMOOTHING_FACTOR must be in (0, 1], got %g", c.SmoothingFactor)
	}
	if c.DeadZone < 0 {
		return fmt.Errorf("DEAD_ZONE must be >= 0, got %g", c.DeadZone)
	}
	if c.NormalizeMax <= 0 {
		return fmt.Errorf("NORMALIZE_MAX must be positive, got %g", c.NormalizeMax)
	}
	for name, g := range map[string]float64{
		"GAIN_RIGHT_UP":   c.GainRightUp,
		"GAIN_RIGHT_DOWN": c.GainRightDown,
		"GAIN_LEFT_LEFT":  c.GainLeftLeft,
		"GAIN_LEFT_RIGHT": c.GainLeftRight,
	} {
		if g <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, g)
		}
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive, got %d", c.SessionDuration)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
