// Command telemetry-sim generates random-walk telemetry for a small fleet of
// simulated objects and posts it to a running corridor server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arctic-data/corridor/internal/httputil"
)

var (
	apiURL    = flag.String("url", "http://localhost:8080/api/telemetry", "Telemetry ingest endpoint")
	interval  = flag.Duration("interval", time.Second, "Time between simulation ticks")
	uniqueIDs = flag.Bool("unique-ids", false, "Suffix object ids with a random token so runs don't collide")
	seed      = flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
)

func main() {
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	suffix := ""
	if *uniqueIDs {
		suffix = "-" + uuid.NewString()[:8]
	}

	// Start positions around Iqaluit, Nunavut.
	objects := []*SimObject{
		NewSimObject("drone_alpha"+suffix, 63.7467, -68.5170, "circle", rng),
		NewSimObject("vehicle_bravo"+suffix, 63.7450, -68.5150, "linear", rng),
		NewSimObject("supersonic_drone"+suffix, 60.0, -95.0, "lateral_bounce", rng),
	}

	client := httputil.NewStandardClient(&http.Client{Timeout: 2 * time.Second})
	runner := NewRunner(client, *apiURL, objects)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, *interval); err != nil && err != context.Canceled {
		log.Fatalf("simulation stopped: %v", err)
	}
	fmt.Println("simulation stopped")
}
