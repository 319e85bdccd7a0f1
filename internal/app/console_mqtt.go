package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude_clock/internal/clock"
	"github.com/relabs-tech/attitude_clock/internal/config"
	"github.com/relabs-tech/attitude_clock/internal/orientation"
)

// RunConsoleMQTT prints every pose and clock update the device publishes
// until interrupted. Handy for eyeballing the telemetry without the web
// dashboard.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to orientation
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: pose unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n",
			p.Roll, p.Pitch, p.Yaw,
		)
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicPose)

	// Subscribe to clock state
	timeToken := client.Subscribe(cfg.TopicTime, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t timePayload
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: time unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[TIME]  %s  field=%s\n",
			t.Time, clock.Field(t.Field),
		)
	})
	timeToken.Wait()
	if timeToken.Error() != nil {
		return timeToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTime)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
