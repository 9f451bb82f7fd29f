// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors turns EMG arm band input (serial lines, MQTT payloads or a
// synthetic band) into emg.Frame values.
package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

// OpenBand opens the serial port an arm band streams envelope lines on.
func OpenBand(portName string, baudRate int) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open band serial port %s: %w", portName, err)
	}
	return port, nil
}

// ParseFrameLine parses one band line of the form
//
//	t,c0,c1,c2,c3,c4,c5,c6,c7
//
// where t is the sample time in seconds.
func ParseFrameLine(line string, arm emg.Arm) (emg.Frame, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != emg.Channels+1 {
		return emg.Frame{}, fmt.Errorf("%s band: want %d fields, got %d", arm, emg.Channels+1, len(fields))
	}
	f := emg.Frame{Source: arm}
	ts, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return emg.Frame{}, fmt.Errorf("%s band: timestamp %q: %w", arm, fields[0], err)
	}
	f.Timestamp = ts
	for i := 0; i < emg.Channels; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return emg.Frame{}, fmt.Errorf("%s band: channel %d %q: %w", arm, i, fields[i+1], err)
		}
		if v < 0 {
			return emg.Frame{}, fmt.Errorf("%s band: channel %d negative envelope %g", arm, i, v)
		}
		f.Values[i] = v
	}
	return f, nil
}

// ReadFrames reads band lines from r until EOF, a read error or ctx is
// done, calling fn for every valid frame. Blank lines, "#" comments,
// malformed lines and frames whose timestamp goes backwards are skipped.
// It returns the number of frames delivered.
func ReadFrames(ctx context.Context, r io.Reader, arm emg.Arm, fn func(emg.Frame)) (int, error) {
	reader := bufio.NewReader(r)
	delivered := 0
	skipped := 0
	lastTS := 0.0

	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			f, perr := ParseFrameLine(trimmed, arm)
			switch {
			case perr != nil:
				skipped++
				// noisy links produce partial lines; only log the first few
				if skipped <= 5 {
					log.Printf("band: %v", perr)
				}
			case delivered > 0 && f.Timestamp < lastTS:
				skipped++
			default:
				lastTS = f.Timestamp
				delivered++
				fn(f)
			}
		}
		if err == io.EOF {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("%s band read: %w", arm, err)
		}
	}
}
