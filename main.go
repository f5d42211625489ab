package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vrmcast/vrmcast/api"
	"github.com/vrmcast/vrmcast/internal/config"
	"github.com/vrmcast/vrmcast/internal/db"
	"github.com/vrmcast/vrmcast/internal/mocap/pipeline"
	"github.com/vrmcast/vrmcast/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db-path", "vrmcast.db", "Path to application database")
	configPath = flag.String("config", "", "Path to tuning config JSON (optional)")
	autoStart  = flag.Bool("auto-start", false, "Start streaming on every restored pipeline at boot")
)

func main() {
	// Subcommands run before flag parsing so they can own their own args.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateDBPath := "vrmcast.db"
		args := parseMigrateArgs(os.Args[2:], &migrateDBPath)
		db.RunMigrateCommand(args, migrateDBPath)
		return
	}

	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("vrmcast %s (%s)", version.Version, version.GitSHA)

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	migrationsFS, err := db.MigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	manager := pipeline.NewManager()
	server := api.NewServer(manager, database, tuning)

	if err := restorePipelines(database, manager, server); err != nil {
		log.Printf("failed to restore stored pipelines: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()

	// Bring every pipeline to idle so in-flight recordings are sealed.
	manager.StopAll()
	log.Printf("Graceful shutdown complete")
}

// parseMigrateArgs strips a --db-path flag from the migrate subcommand
// args, returning the remaining action words.
func parseMigrateArgs(args []string, dbPath *string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--db-path" && i+1 < len(args) {
			*dbPath = args[i+1]
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// restorePipelines registers every stored pipeline configuration with the
// manager. Pipelines whose profile no longer parses are skipped with a
// log line rather than failing startup.
func restorePipelines(database *db.DB, manager *pipeline.Manager, server *api.Server) error {
	configs, err := database.ListPipelineConfigs()
	if err != nil {
		return err
	}
	for i := range configs {
		p, err := server.RestorePipeline(&configs[i])
		if err != nil {
			log.Printf("skipping pipeline %s: %v", configs[i].ID, err)
			continue
		}
		if *autoStart {
			if err := p.StartStreaming(); err != nil {
				log.Printf("failed to start pipeline %s: %v", p.ID(), err)
			}
		}
	}
	return nil
}
