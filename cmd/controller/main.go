// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/emg_steering/internal/app"
	"github.com/relabs-tech/emg_steering/internal/config"
)

func main() {
	configPath := flag.String("config", "./emg_config.txt", "path to configuration file")
	start := flag.Bool("start", false, "begin calibration immediately instead of waiting for a start command")
	flag.Parse()

	log.Println("starting emg-steering controller (MQTT frames → calibration → axes)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunController(config.Get(), *start); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
