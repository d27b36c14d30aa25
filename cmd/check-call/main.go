package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/store"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/mongo"
)

// check-call prints the stored outcome and status history of a call
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: go run ./cmd/check-call <call_id>")
	}
	callID := os.Args[1]

	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "temp-secret-for-script-only")
	}
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	fmt.Println("========================================")
	fmt.Printf("Checking Call Status: %s\n", callID)
	fmt.Println("========================================")
	fmt.Println()

	rec, err := store.NewMongoStore(mongoClient, zap.NewNop()).Call(ctx, callID)
	if err != nil {
		log.Fatalf("Failed to read call: %v", err)
	}
	if rec == nil {
		fmt.Println("⚠️  No record for this call yet")
		os.Exit(1)
	}

	fmt.Printf("Status: %s\n", rec.Status)
	if rec.Message != "" {
		fmt.Printf("Message: %s\n", rec.Message)
	}
	fmt.Printf("Updated: %s\n", rec.UpdatedAt.Local().Format(time.RFC3339))
	fmt.Println()
	fmt.Println("History:")
	fmt.Println("----------------------------------------")
	for _, h := range rec.History {
		fmt.Printf("%s  %-14s %s\n", h.At.Local().Format("15:04:05"), h.Status, h.Message)
	}

	if len(os.Args) > 2 && os.Args[2] == "--json" {
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println()
		fmt.Println(string(out))
	}
}
