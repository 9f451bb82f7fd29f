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
	staticDir := flag.String("static", "web", "directory with the calibration page")
	flag.Parse()

	log.Println("starting emg-steering web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: live data requires the controller to be running (./controller)")

	if err := app.RunWeb(config.Get(), *staticDir); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
