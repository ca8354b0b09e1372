package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hariqueen/G2B-API/internal/api"
	"github.com/hariqueen/G2B-API/internal/collect"
	"github.com/hariqueen/G2B-API/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb, err := store.ConnectRedis(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to realtime store: %v", err)
	}
	defer rdb.Close()

	deps := api.Deps{
		Bids:        store.NewBids(rdb),
		Annotations: store.NewAnnotations(rdb),
		Prefs:       store.NewPrefs(rdb),
	}

	// The document store is optional: the dashboard keeps serving from the
	// realtime store when it is unreachable.
	mongoClient, err := store.ConnectMongo(ctx)
	if err != nil {
		log.Printf("Document store unavailable, relay disabled: %v", err)
	} else {
		defer mongoClient.Disconnect(context.Background())
		notices := store.NewNotices(mongoClient)
		deps.Notices = notices

		reg, err := collect.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
		if err != nil {
			log.Printf("Collector registry unavailable, admin collect disabled: %v", err)
		} else {
			client := collect.NewClient(reg)
			deps.Collector = collect.NewPipeline(client, reg, notices, store.NewBids(rdb), nil)
		}
	}

	srv := api.NewServer(deps)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
