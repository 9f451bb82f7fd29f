// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/sensors"
)

type bandPort struct {
	arm   emg.Arm
	port  string
	topic string
}

func bandPorts(cfg *config.Config) []bandPort {
	var ports []bandPort
	if cfg.EMGLeftSerialPort != "" {
		ports = append(ports, bandPort{arm: emg.Left, port: cfg.EMGLeftSerialPort, topic: cfg.TopicEMGLeft})
	}
	if cfg.EMGRightSerialPort != "" {
		ports = append(ports, bandPort{arm: emg.Right, port: cfg.EMGRightSerialPort, topic: cfg.TopicEMGRight})
	}
	return ports
}

// RunBandProducer opens the serial port of every configured arm band,
// parses envelope lines and publishes each frame as JSON on the arm's
// topic until SIGINT/SIGTERM or until every band stops.
func RunBandProducer(cfg *config.Config) error {
	ports := bandPorts(cfg)
	if len(ports) == 0 {
		return errors.New("band producer: no serial port configured (EMG_LEFT_SERIAL_PORT / EMG_RIGHT_SERIAL_PORT)")
	}

	client, err := connectMQTT("band producer", cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := &mqttPublisher{client: client}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errs := make([]error, len(ports))
	for i, bp := range ports {
		port, err := sensors.OpenBand(bp.port, cfg.EMGBaudRate)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		log.Printf("band producer: %s band on %s at %d baud", bp.arm, bp.port, cfg.EMGBaudRate)

		// closing the port unblocks the pending read on shutdown
		go func() {
			<-ctx.Done()
			port.Close()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := sensors.ReadFrames(ctx, port, bp.arm, func(f emg.Frame) {
				publishFrame(pub, bp.topic, f)
			})
			log.Printf("band producer: %s band stopped after %d frames", bp.arm, n)
			if err != nil && ctx.Err() == nil {
				errs[i] = fmt.Errorf("band producer: %w", err)
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

func publishFrame(pub Publisher, topic string, f emg.Frame) {
	payload, err := sensors.EncodeFrame(f)
	if err != nil {
		log.Printf("%s frame marshal error: %v", f.Source, err)
		return
	}
	if err := pub.Publish(topic, payload); err != nil {
		log.Printf("MQTT publish error (%s): %v", topic, err)
	}
}
