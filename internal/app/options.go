// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"time"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/mapper"
)

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// CalibrationOptions converts the calibration keys of cfg.
func CalibrationOptions(cfg *config.Config) calibration.Options {
	opts := calibration.Options{
		CaptureDuration: millis(cfg.CaptureDuration),
		RestartMode:     calibration.RestartMode(cfg.RestartMode),
		RestartDelay:    millis(cfg.RestartDelay),
		Sentinel:        calibration.SentinelNegInf,
	}
	if cfg.RegistrySentinel == "zero" {
		opts.Sentinel = calibration.SentinelZero
	}
	return opts
}

// MapperOptions converts the mapping keys of cfg.
func MapperOptions(cfg *config.Config) mapper.Options {
	return mapper.Options{
		MaxSpeed:      cfg.MaxSpeed,
		Smoothing:     cfg.SmoothingFactor,
		DeadZone:      cfg.DeadZone,
		DeadZoneMode:  mapper.DeadZoneMode(cfg.DeadZoneMode),
		NormalizeMode: mapper.NormalizeMode(cfg.NormalizeMode),
		NormalizeMax:  cfg.NormalizeMax,
		Gains: map[calibration.Direction]float64{
			calibration.RightUp:   cfg.GainRightUp,
			calibration.RightDown: cfg.GainRightDown,
			calibration.LeftLeft:  cfg.GainLeftLeft,
			calibration.LeftRight: cfg.GainLeftRight,
		},
	}
}

// ControllerOptionsFromConfig builds the controller setup from cfg.
func ControllerOptionsFromConfig(cfg *config.Config) ControllerOptions {
	return ControllerOptions{
		Calibration:     CalibrationOptions(cfg),
		Mapper:          MapperOptions(cfg),
		SessionDuration: time.Duration(cfg.SessionDuration) * time.Second,
		TickInterval:    millis(cfg.ControlTickInterval),
		Topics: Topics{
			Axes:        cfg.TopicAxes,
			Calibration: cfg.TopicCalibration,
			Session:     cfg.TopicSession,
		},
	}
}
