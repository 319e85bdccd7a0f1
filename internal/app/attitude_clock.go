// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/attitude_clock/internal/clock"
	"github.com/relabs-tech/attitude_clock/internal/config"
	"github.com/relabs-tech/attitude_clock/internal/display"
	"github.com/relabs-tech/attitude_clock/internal/editmode"
	"github.com/relabs-tech/attitude_clock/internal/encoder"
	"github.com/relabs-tech/attitude_clock/internal/latest"
	"github.com/relabs-tech/attitude_clock/internal/orientation"
	"github.com/relabs-tech/attitude_clock/internal/sensors"
)

// ClockState is what the clock task publishes after every tick: the
// current time together with the field selected for editing, so the
// display can draw the cursor against the same snapshot it shows.
type ClockState struct {
	Now   time.Time
	Field clock.Field
}

// timePayload is the JSON shape published to the time topic. The
// drift_check tool unmarshals the same struct.
type timePayload struct {
	Time  string `json:"time"` // "2006-01-02 15:04:05"
	Unix  int64  `json:"unix"`
	Field int    `json:"field"`
}

const cursorBlinkInterval = 500 * time.Millisecond

// RunAttitudeClock starts every device task and blocks until one of
// them fails or the process receives SIGINT/SIGTERM. Tasks exchange
// state through latest-value channels: each producer clears its channel
// before sending so a consumer that fell behind observes only the
// newest value, never a backlog.
func RunAttitudeClock() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(sigCtx)

	poseCh := latest.New[orientation.Pose](1)
	stateCh := latest.New[ClockState](1)
	fieldCh := latest.New[clock.Field](1)
	deltaCh := latest.New[int](1)

	g.Go(func() error { return runSampler(ctx, poseCh) })
	g.Go(func() error { return runEncoder(ctx, g, deltaCh) })
	g.Go(func() error { return runButton(ctx, fieldCh) })
	g.Go(func() error { return runClock(ctx, stateCh, fieldCh, deltaCh) })
	g.Go(func() error { return runDisplay(ctx, stateCh, poseCh) })
	g.Go(func() error { return runHeartbeat(ctx) })
	g.Go(func() error { return runTelemetry(ctx, stateCh, poseCh) })

	err := g.Wait()
	if sigCtx.Err() != nil {
		log.Println("attitude_clock: shutting down on signal")
		return nil
	}
	return err
}

// runSampler owns the orientation pipeline: it calibrates once at
// startup and then publishes a fresh pose every sample interval. A
// sensor bus error is fatal; a transient degenerate sample is absorbed
// by the estimator, which re-publishes the previous pose.
func runSampler(ctx context.Context, poseCh *latest.Channel[orientation.Pose]) error {
	cfg := config.Get()

	var src orientation.Source
	if cfg.UseMockOrientation {
		log.Println("sampler: using mock orientation source")
		src = orientation.NewMockSource()
	} else {
		samples, err := sensors.NewMPUSource()
		if err != nil {
			return fmt.Errorf("sampler: %w", err)
		}

		period := float32(cfg.IMUSampleInterval) / 1000.0
		est := orientation.NewEstimator(samples, period, float32(cfg.IMUFilterBeta))

		calCtx := ctx
		if cfg.CalibrationTimeout > 0 {
			var cancel context.CancelFunc
			calCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.CalibrationTimeout)*time.Millisecond)
			defer cancel()
		}
		log.Printf("sampler: calibrating, keep the device still (%d samples)", cfg.CalibrationSamples)
		if err := est.Calibrate(calCtx, cfg.CalibrationSamples, time.Duration(cfg.IMUSampleInterval)*time.Millisecond); err != nil {
			return fmt.Errorf("sampler: calibration: %w", err)
		}
		off := est.Offsets()
		log.Printf("sampler: calibrated, gyro bias=(%.4f %.4f %.4f) accel bias=(%.4f %.4f %.4f)",
			off.GyroBias.X, off.GyroBias.Y, off.GyroBias.Z,
			off.AccelBias.X, off.AccelBias.Y, off.AccelBias.Z)
		src = est
	}

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pose, err := src.Next()
			if err != nil {
				return fmt.Errorf("sampler: %w", err)
			}
			poseCh.Clear()
			poseCh.Send(pose)
		}
	}
}

// runEncoder scans the quadrature phase on a fast ticker and polls the
// smoothed decoder on a slow one, publishing only non-zero deltas.
func runEncoder(ctx context.Context, g *errgroup.Group, deltaCh *latest.Channel[int]) error {
	cfg := config.Get()

	counter, err := encoder.NewGPIOCounter(cfg.EncoderCLKPin, cfg.EncoderDTPin)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	g.Go(func() error {
		return counter.Run(ctx, time.Duration(cfg.EncoderScanInterval)*time.Millisecond)
	})

	dec := encoder.NewDecoder(counter, cfg.EncoderSmoothing)

	ticker := time.NewTicker(time.Duration(cfg.EncoderPollInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			delta, emit := dec.Poll()
			if !emit || delta == 0 {
				continue
			}
			deltaCh.Clear()
			deltaCh.Send(delta)
		}
	}
}

// runButton cycles the edit field on every debounced press. The field
// is published before waiting for the release so the cursor moves while
// the button is still held.
func runButton(ctx context.Context, fieldCh *latest.Channel[clock.Field]) error {
	cfg := config.Get()

	btn, err := editmode.NewGPIOButton(cfg.ButtonPin)
	if err != nil {
		return fmt.Errorf("button: %w", err)
	}

	var sm editmode.StateMachine
	debounce := time.Duration(cfg.ButtonDebounce) * time.Millisecond

	for {
		if err := editmode.WaitForPress(ctx, btn, debounce); err != nil {
			return fmt.Errorf("button: %w", err)
		}

		field := clock.Field(sm.Advance())
		log.Printf("button: edit field -> %s", field)
		fieldCh.Clear()
		fieldCh.Send(field)

		if err := btn.WaitForRisingEdge(ctx); err != nil {
			return fmt.Errorf("button: %w", err)
		}
	}
}

// runClock owns the software clock. While no field is selected, every
// tick advances the time; while a field is selected, time stands still
// and pending encoder deltas adjust that field instead. Either way a
// snapshot is published for the display and telemetry tasks. Deltas
// that arrive while no field is selected are consumed and discarded.
func runClock(ctx context.Context, stateCh *latest.Channel[ClockState], fieldCh *latest.Channel[clock.Field], deltaCh *latest.Channel[int]) error {
	cfg := config.Get()

	start := time.Now()
	if cfg.ClockStart != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", cfg.ClockStart, time.Local)
		if err != nil {
			return fmt.Errorf("clock: parse CLOCK_START: %w", err)
		}
		start = t
	}
	c := clock.New(start)
	log.Printf("clock: starting at %s", c.Now().Format("2006-01-02 15:04:05"))

	tick := time.Duration(cfg.ClockTickInterval) * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastPublished ClockState

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			field, _ := fieldCh.TryPeek()
			delta, haveDelta := deltaCh.TryReceive()
			if stepClock(c, tick, field, delta, haveDelta) {
				log.Printf("clock: %s %+d -> %s", field, delta, c.Now().Format("2006-01-02 15:04:05"))
			}

			// Publish only on change; consumers peek at their own rate and
			// do not need wakeups for identical state.
			state := ClockState{Now: c.Now(), Field: field}
			if state != lastPublished {
				stateCh.Clear()
				stateCh.Send(state)
				lastPublished = state
			}
		}
	}
}

// stepClock applies one tick: normal time flows only while no field is
// selected; otherwise the clock is paused and a pending delta adjusts
// the selected field. Reports whether the delta changed the time.
func stepClock(c *clock.Clock, tick time.Duration, field clock.Field, delta int, haveDelta bool) bool {
	if field == clock.FieldNone {
		c.Advance(tick)
		return false
	}
	if !haveDelta {
		return false
	}
	return c.Adjust(field, delta)
}

// runDisplay owns the SSD1306. It repaints at the configured rate from
// whatever snapshots are currently available, without ever blocking on
// the producer tasks.
func runDisplay(ctx context.Context, stateCh *latest.Channel[ClockState], poseCh *latest.Channel[orientation.Pose]) error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("display: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("display: open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: init: %w", err)
	}
	log.Printf("display: initialized, content %q", cfg.DisplayContent)

	img := display.NewFrame()
	display.RenderSplash(img)
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: splash draw error: %v", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	cursorVisible := true
	lastBlink := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if now.Sub(lastBlink) >= cursorBlinkInterval {
				cursorVisible = !cursorVisible
				lastBlink = now
			}

			switch cfg.DisplayContent {
			case "clock":
				state, ok := stateCh.TryPeek()
				if !ok {
					continue // keep the splash until the first tick
				}
				display.RenderClock(img, state.Now, int(state.Field), cursorVisible)
			case "attitude":
				pose, ok := poseCh.TryPeek()
				display.RenderAttitude(img, pose, ok)
			}

			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: draw error: %v", err)
			}
		}
	}
}

// runHeartbeat blinks the status LED. A missing pin just disables the
// heartbeat; it is not worth failing the whole device over.
func runHeartbeat(ctx context.Context) error {
	cfg := config.Get()

	if cfg.HeartbeatPin == "" {
		log.Println("heartbeat: no pin configured, disabled")
		return nil
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("heartbeat: periph host init: %w", err)
	}
	pin := gpioreg.ByName(cfg.HeartbeatPin)
	if pin == nil {
		return fmt.Errorf("heartbeat: pin %q not found", cfg.HeartbeatPin)
	}

	interval := time.Duration(cfg.HeartbeatInterval) * time.Millisecond
	if interval == 0 {
		interval = cursorBlinkInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	level := gpio.Low
	for {
		select {
		case <-ctx.Done():
			pin.Out(gpio.Low)
			return ctx.Err()
		case <-ticker.C:
			level = !level
			if err := pin.Out(level); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

// runTelemetry mirrors the newest pose and clock state to MQTT as
// retained messages, so late subscribers immediately see current state.
func runTelemetry(ctx context.Context, stateCh *latest.Channel[ClockState], poseCh *latest.Channel[orientation.Pose]) error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDevice)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("telemetry: MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("telemetry: connected to MQTT broker at %s", cfg.MQTTBroker)

	interval := time.Duration(cfg.TelemetryInterval) * time.Millisecond
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if pose, ok := poseCh.TryPeek(); ok && cfg.TopicPose != "" {
				payload, err := json.Marshal(pose)
				if err != nil {
					log.Printf("telemetry: pose marshal error: %v", err)
				} else if token := client.Publish(cfg.TopicPose, 0, true, payload); token.Wait() && token.Error() != nil {
					log.Printf("telemetry: pose publish error: %v", token.Error())
				}
			}

			if state, ok := stateCh.TryPeek(); ok && cfg.TopicTime != "" {
				payload, err := json.Marshal(timePayload{
					Time:  state.Now.Format("2006-01-02 15:04:05"),
					Unix:  state.Now.Unix(),
					Field: int(state.Field),
				})
				if err != nil {
					log.Printf("telemetry: time marshal error: %v", err)
				} else if token := client.Publish(cfg.TopicTime, 0, true, payload); token.Wait() && token.Error() != nil {
					log.Printf("telemetry: time publish error: %v", token.Error())
				}

				if cfg.TopicField != "" {
					fieldPayload, err := json.Marshal(struct {
						Field int `json:"field"`
					}{int(state.Field)})
					if err != nil {
						log.Printf("telemetry: field marshal error: %v", err)
					} else if token := client.Publish(cfg.TopicField, 0, true, fieldPayload); token.Wait() && token.Error() != nil {
						log.Printf("telemetry: field publish error: %v", token.Error())
					}
				}
			}
		}
	}
}
