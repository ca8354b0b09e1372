package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/hariqueen/G2B-API/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	limit := 20
	if len(os.Args) > 1 {
		if parsed, err := strconv.Atoi(os.Args[1]); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx := context.Background()
	mongoClient, err := store.ConnectMongo(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer mongoClient.Disconnect(context.Background())

	docs, err := store.NewNotices(mongoClient).List(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Notice", "Org", "Budget", "Announced", "Re-notice"})

	for i, doc := range docs {
		if i >= limit {
			break
		}
		t.AppendRow(table.Row{
			field(doc, "id"),
			truncate(field(doc, "bidNtceNm"), 40),
			field(doc, "dminsttNm"),
			field(doc, "asignBdgtAmt"),
			field(doc, "bidNtceDt"),
			field(doc, "reNtceYn"),
		})
	}
	t.Render()
	log.Printf("%d notices in store, showing %d", len(docs), min(limit, len(docs)))
}

func field(doc map[string]any, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
