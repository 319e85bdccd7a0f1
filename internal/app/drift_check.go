package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/attitude_clock/internal/config"
	"github.com/relabs-tech/attitude_clock/internal/gps"
)

// RunDriftCheck measures how far the device's software clock has
// drifted from GPS time. It subscribes to the clock topic over MQTT and
// reads NMEA sentences from a GPS receiver on the serial port; every
// valid RMC fix produces one drift report.
//
// The software clock is free-running with no RTC behind it, so this is
// the only way to quantify its error in the field.
func RunDriftCheck() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker and track the device clock ----
	var (
		mu         sync.RWMutex
		lastTime   timePayload
		receivedAt time.Time
		haveTime   bool
	)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDrift)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("drift: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicTime, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t timePayload
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("drift: time unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastTime = t
		receivedAt = time.Now()
		haveTime = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("drift: subscribed to %s", cfg.TopicTime)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("drift: GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("drift: GPS read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}

		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		fix := gps.FixFromRMC(sentence.(nmea.RMC))
		if !fix.Valid() {
			continue
		}

		mu.RLock()
		deviceUnix := lastTime.Unix
		age := time.Since(receivedAt)
		have := haveTime
		mu.RUnlock()

		if !have {
			log.Println("drift: got GPS fix, waiting for device clock")
			continue
		}

		// The device publishes its clock periodically; extrapolate it to
		// now before comparing so the report measures clock drift rather
		// than telemetry latency.
		deviceTime := time.Unix(deviceUnix, 0).Add(age)
		drift := deviceTime.Sub(fix.Time)

		log.Printf("drift: device=%s gps=%s drift=%+.1fs",
			deviceTime.UTC().Format("15:04:05"),
			fix.Time.Format("15:04:05"),
			drift.Seconds(),
		)
	}
}
