package main

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/arctic-data/corridor/internal/httputil"
)

func TestSimObjectCircleStaysNearCenter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	obj := NewSimObject("drone", 63.7467, -68.5170, "circle", rng)

	for i := 0; i < 200; i++ {
		obj.Update()
		if dLat := obj.lat - obj.centerLat; dLat < -0.006 || dLat > 0.006 {
			t.Fatalf("tick %d: lat drifted off the circle: %v", i, dLat)
		}
		if dLon := obj.lon - obj.centerLon; dLon < -0.006 || dLon > 0.006 {
			t.Fatalf("tick %d: lon drifted off the circle: %v", i, dLon)
		}
	}
}

func TestSimObjectLateralBounceStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	obj := NewSimObject("fast", 60.0, -95.0, "lateral_bounce", rng)

	for i := 0; i < 50000; i++ {
		obj.Update()
		if obj.lon > -55 || obj.lon < -130 {
			t.Fatalf("tick %d: lon out of bounds: %v", i, obj.lon)
		}
	}
}

func TestSimObjectBatteryDecays(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	obj := NewSimObject("drone", 63.7467, -68.5170, "circle", rng)

	for i := 0; i < 10; i++ {
		obj.Update()
	}
	if obj.battery >= 100 {
		t.Errorf("battery should decay, still %v", obj.battery)
	}
	payload := obj.Payload(time.Now())
	if payload["battery_pct"].(float64) != obj.battery {
		t.Error("payload battery does not match object state")
	}
}

func TestPayloadTimestampCarriesOffset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	obj := NewSimObject("drone", 63.7467, -68.5170, "static", rng)
	obj.Update()

	ts := obj.Payload(time.Now())["ts"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("payload ts %q is not RFC 3339: %v", ts, err)
	}
}

func TestRunnerTickPostsEveryObject(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	objects := []*SimObject{
		NewSimObject("a", 63.7467, -68.5170, "circle", rng),
		NewSimObject("b", 63.7450, -68.5150, "linear", rng),
	}

	mock := httputil.NewMockHTTPClient()
	runner := NewRunner(mock, "http://example.test/api/telemetry", objects)

	sent := runner.Tick(time.Now())
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if len(mock.Requests) != 2 {
		t.Fatalf("recorded %d requests, want 2", len(mock.Requests))
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(mock.Requests[0]), &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if body["object_id"] != "a" {
		t.Errorf("object_id = %v, want a", body["object_id"])
	}
}

func TestRunnerTickSurvivesTransportErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	objects := []*SimObject{
		NewSimObject("a", 63.7467, -68.5170, "circle", rng),
		NewSimObject("b", 63.7450, -68.5150, "linear", rng),
	}

	mock := httputil.NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection refused"))
	mock.AddResponse(201, `{}`)
	runner := NewRunner(mock, "http://example.test/api/telemetry", objects)

	sent := runner.Tick(time.Now())
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (first post fails, second succeeds)", sent)
	}
}
