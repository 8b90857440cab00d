package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/arctic-data/corridor/internal/httputil"
)

// SimObject is one simulated mover. Movement types mirror the field cases the
// tracker sees: a circling drone, a vehicle on a straight diagonal, and a
// fast lateral runner that bounces between longitude limits.
type SimObject struct {
	ObjectID string
	Movement string

	lat, lon             float64
	centerLat, centerLon float64
	radius               float64
	battery              float64
	speed                float64
	heading              float64
	direction            float64
	tick                 int
	rng                  *rand.Rand
}

// NewSimObject creates a mover at the given start position.
func NewSimObject(id string, lat, lon float64, movement string, rng *rand.Rand) *SimObject {
	return &SimObject{
		ObjectID:  id,
		Movement:  movement,
		lat:       lat,
		lon:       lon,
		centerLat: lat,
		centerLon: lon,
		radius:    0.005, // approx 500m
		battery:   100.0,
		direction: 1,
		rng:       rng,
	}
}

// Update advances the object one tick.
func (o *SimObject) Update() {
	o.tick++

	switch o.Movement {
	case "circle":
		angle := float64((o.tick * 5) % 360)
		rad := angle * math.Pi / 180
		o.lat = o.centerLat + o.radius*math.Sin(rad)
		o.lon = o.centerLon + o.radius*math.Cos(rad)
		o.heading = math.Mod(angle+90, 360)
		o.speed = 15.0
	case "linear":
		o.lat += 0.0001
		o.lon += 0.0001
		o.heading = 45.0
		o.speed = 22.5
	case "lateral_bounce":
		// At ~60N one degree of longitude is ~55.8km, so 300 m/s is about
		// 0.00537 deg per tick.
		const speedDeg = 0.00537
		o.lon += o.direction * speedDeg
		if o.direction > 0 {
			o.heading = 90
		} else {
			o.heading = 270
		}
		o.speed = 300.0
		if o.lon > -55 {
			o.direction = -1
			o.lon = -55
		} else if o.lon < -130 {
			o.direction = 1
			o.lon = -130
		}
	default:
		o.heading = 0
		o.speed = 0
	}

	o.battery = math.Max(0, o.battery-0.05)
}

// Payload builds the telemetry request body for the current state. Roughly
// one point in twenty carries a low confidence to exercise the alerting path.
func (o *SimObject) Payload(now time.Time) map[string]interface{} {
	confidence := 0.99
	if o.rng.Float64() < 0.05 {
		confidence = 0.1 + o.rng.Float64()*0.39
	}

	alt := 120.5
	rssi := -60 - o.rng.Float64()*25

	return map[string]interface{}{
		"object_id":   o.ObjectID,
		"ts":          now.UTC().Format(time.RFC3339),
		"lat":         o.lat,
		"lon":         o.lon,
		"alt_m":       alt,
		"confidence":  confidence,
		"speed_mps":   o.speed,
		"heading_deg": o.heading,
		"rssi_dbm":    rssi,
		"battery_pct": o.battery,
	}
}

// Runner drives a fleet of simulated objects against the ingest endpoint.
type Runner struct {
	client  httputil.HTTPClient
	url     string
	objects []*SimObject
}

// NewRunner creates a Runner posting to url with the given client.
func NewRunner(client httputil.HTTPClient, url string, objects []*SimObject) *Runner {
	return &Runner{client: client, url: url, objects: objects}
}

// Tick updates and posts every object once, returning the number of points
// accepted by the server.
func (r *Runner) Tick(now time.Time) int {
	sent := 0
	for _, obj := range r.objects {
		obj.Update()

		body, err := json.Marshal(obj.Payload(now))
		if err != nil {
			log.Printf("failed to encode payload for %s: %v", obj.ObjectID, err)
			continue
		}

		resp, err := r.client.Post(r.url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("error sending %s: %v", obj.ObjectID, err)
			continue
		}
		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(resp.Body)
			log.Printf("[%d] rejected %s: %s", resp.StatusCode, obj.ObjectID, bytes.TrimSpace(msg))
		} else {
			sent++
			log.Printf("[%d] sent %s: batt=%.1f%%", resp.StatusCode, obj.ObjectID, obj.battery)
		}
		resp.Body.Close()
	}
	return sent
}

// Run ticks the fleet at the given interval until the context is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("Starting simulation for %d objects...\n", len(r.objects))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Tick(now)
		}
	}
}
