// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

type wireFrame struct {
	Source    string    `json:"source"`
	Timestamp float64   `json:"t"`
	Values    []float64 `json:"ch"`
}

// EncodeFrame marshals a frame for MQTT.
func EncodeFrame(f emg.Frame) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame unmarshals an MQTT frame payload received on the topic of
// arm. The payload must carry exactly emg.Channels values; a source field
// that names the other arm is rejected.
func DecodeFrame(payload []byte, arm emg.Arm) (emg.Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return emg.Frame{}, fmt.Errorf("%s frame unmarshal: %w", arm, err)
	}
	if len(w.Values) != emg.Channels {
		return emg.Frame{}, fmt.Errorf("%s frame: want %d channels, got %d", arm, emg.Channels, len(w.Values))
	}
	if w.Source != "" && emg.Arm(w.Source) != arm {
		return emg.Frame{}, fmt.Errorf("%s frame: source %q on wrong topic", arm, w.Source)
	}
	f := emg.Frame{Source: arm, Timestamp: w.Timestamp}
	copy(f.Values[:], w.Values)
	return f, nil
}
