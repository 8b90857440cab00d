package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arctic-data/corridor/internal/alertstream"
	"github.com/arctic-data/corridor/internal/api"
	"github.com/arctic-data/corridor/internal/config"
	"github.com/arctic-data/corridor/internal/db"
	"github.com/arctic-data/corridor/internal/ingest"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (mounts admin debug routes)")
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "corridor.db", "Path to sqlite database file")
	migrationsDir = flag.String("migrations", "migrations", "Path to migrations directory")
	configPath    = flag.String("config", "", "Path to tuning config JSON (optional)")
	kafkaBrokers  = flag.String("kafka-brokers", "", "Comma-separated Kafka brokers for the alert stream (optional)")
	kafkaTopic    = flag.String("kafka-topic", alertstream.DefaultTopic, "Kafka topic for the alert stream")
)

func main() {
	flag.Parse()

	// Subcommands run and exit before the server starts.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath, *migrationsDir)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureMigrated(*migrationsDir); err != nil {
		log.Fatalf("Database schema check failed: %v", err)
	}

	pipelineOpts := []ingest.Option{
		ingest.WithLowConfidenceThreshold(cfg.GetLowConfidenceThreshold()),
	}
	if *kafkaBrokers != "" {
		producer := alertstream.NewProducer(strings.Split(*kafkaBrokers, ","), *kafkaTopic)
		defer producer.Close()
		pipelineOpts = append(pipelineOpts, ingest.WithAlertPublisher(producer))
		log.Printf("Alert stream enabled: brokers=%s topic=%s", *kafkaBrokers, *kafkaTopic)
	}
	pipeline := ingest.NewPipeline(database, pipelineOpts...)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// behind a trusted proxy)
		if *devMode {
			database.AttachAdminRoutes(mux)
		}

		mux.Handle("/", api.NewServer(database, pipeline, cfg).Handler())

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
