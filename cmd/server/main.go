package main

import (
	"flag"
	"log"

	approuters "Flort/internal/app_routers"
	"Flort/internal/configuration"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (defaults to $FLORT_CONFIG or config.yaml)")
	flag.Parse()

	config, err := configuration.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := configuration.BuildContainer(config)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer func() {
		if err := container.Close(); err != nil {
			log.Printf("Cleanup error: %v", err)
		}
	}()

	approuters.StartServer(container)
}
