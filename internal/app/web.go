package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/attitude_clock/internal/config"
	"github.com/relabs-tech/attitude_clock/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState mirrors the device's retained MQTT topics for the HTTP and
// websocket handlers.
type webState struct {
	mu       sync.RWMutex
	lastPose orientation.Pose
	havePose bool
	lastTime timePayload
	haveTime bool
}

// wsUpdate is one websocket frame: whatever device state is known.
type wsUpdate struct {
	Pose *orientation.Pose `json:"pose,omitempty"`
	Time *timePayload      `json:"time,omitempty"`
}

func (s *webState) snapshot() wsUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u wsUpdate
	if s.havePose {
		p := s.lastPose
		u.Pose = &p
	}
	if s.haveTime {
		t := s.lastTime
		u.Time = &t
	}
	return u
}

// RunWeb serves the dashboard: a JSON API and a websocket that pushes
// the latest pose and clock state, both fed from the device's retained
// MQTT topics.
func RunWeb() error {
	cfg := config.Get()
	state := &webState{}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to pose and time topics, keep only the latest of each
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("web: pose unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.lastPose = p
		state.havePose = true
		state.mu.Unlock()
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicPose)

	timeToken := client.Subscribe(cfg.TopicTime, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t timePayload
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("web: time unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.lastTime = t
		state.haveTime = true
		state.mu.Unlock()
	})
	timeToken.Wait()
	if timeToken.Error() != nil {
		return timeToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicTime)

	// 3) JSON API endpoints: latest pose and clock state
	http.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.havePose {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.lastPose); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/time", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveTime {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.lastTime); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket: push the latest state to the browser on a fixed cadence
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			if err := conn.WriteJSON(state.snapshot()); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	port := cfg.WebServerPort
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
