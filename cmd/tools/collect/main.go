package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hariqueen/G2B-API/internal/collect"
	"github.com/hariqueen/G2B-API/internal/store"
)

func main() {
	fromFlag := flag.String("from", "", "collection start date (YYYY-MM-DD), default: incremental from the newest stored notice")
	toFlag := flag.String("to", "", "collection end date (YYYY-MM-DD), default: now")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	ctx := context.Background()

	mongoClient, err := store.ConnectMongo(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to document store: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	rdb, err := store.ConnectRedis(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to realtime store: %v", err)
	}
	defer rdb.Close()

	reg, err := collect.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	notices := store.NewNotices(mongoClient)
	pipeline := collect.NewPipeline(collect.NewClient(reg), reg, notices, store.NewBids(rdb), nil)

	now := time.Now()
	to := now
	if *toFlag != "" {
		parsed, err := time.Parse("2006-01-02", *toFlag)
		if err != nil {
			log.Fatalf("Invalid -to date: %v", err)
		}
		to = parsed.Add(24*time.Hour - time.Minute)
	}

	var from time.Time
	if *fromFlag != "" {
		from, err = time.Parse("2006-01-02", *fromFlag)
		if err != nil {
			log.Fatalf("Invalid -from date: %v", err)
		}
	} else {
		fallback := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		from = pipeline.IncrementalFrom(ctx, fallback)
	}

	log.Printf("Collecting notices from %s to %s", from.Format("2006-01-02 15:04"), to.Format("2006-01-02 15:04"))

	stats, err := pipeline.Run(ctx, from, to)
	if err != nil {
		log.Fatalf("Collection failed: %v", err)
	}
	log.Printf("Done: found=%d saved=%d curated=%d removed=%d errors=%d",
		stats.Found, stats.Saved, stats.Curated, stats.Removed, stats.Errors)
}
