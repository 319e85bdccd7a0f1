package main

import (
	"log"

	"github.com/relabs-tech/attitude_clock/internal/app"
	"github.com/relabs-tech/attitude_clock/internal/config"
)

func main() {
	log.Println("starting attitude-clock console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("attitude_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
