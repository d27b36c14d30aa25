package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/store"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/mongo"
	"github.com/troikatech/collections-agent/pkg/utils"
)

// check-db verifies the backing stores the server needs and, given a
// phone number, shows which customer a call to it would resolve to.
func main() {
	fmt.Println("========================================")
	fmt.Println("Database Connection Diagnostic Tool")
	fmt.Println("========================================")
	fmt.Println()

	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "temp-secret-for-script-only")
	}
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	failed := false

	fmt.Println("Test 1: Redis...")
	rdb, err := store.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		failed = true
	} else {
		defer rdb.Close()
		fmt.Println("✅ Redis reachable")
	}
	fmt.Println()

	fmt.Println("Test 2: MongoDB...")
	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, zap.NewNop())
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		fmt.Println("  Check MONGO_URI and DB_NAME in .env file")
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	fmt.Printf("✅ MongoDB reachable (database %s)\n", cfg.DBName)
	fmt.Println()

	fmt.Printf("Test 3: Customer store (%s)...\n", cfg.StoreDriver)
	customers, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresURL: cfg.PostgresURL,
		Mongo:       mongoClient,
	}, zap.NewNop())
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		os.Exit(1)
	}
	defer customers.Close(context.Background())
	fmt.Println("✅ Customer store open")
	fmt.Println()

	if len(os.Args) > 1 {
		fmt.Println("Test 4: Customer lookup...")
		variants := utils.PhoneVariants(os.Args[1])
		p, err := customers.FindByPhone(ctx, variants)
		switch {
		case err != nil:
			fmt.Printf("❌ ERROR: %v\n", err)
			failed = true
		case p == nil:
			fmt.Printf("⚠️  No customer matches %d phone forms\n", len(variants))
		default:
			fmt.Printf("✅ Found %s, loan ending %s, outstanding %.2f\n", p.FirstName(), p.LoanSuffix(), p.OutstandingAmount)
			if err := p.Validate(); err != nil {
				fmt.Printf("⚠️  Record cannot be called: %v\n", err)
			}
		}
		fmt.Println()
	}

	fmt.Println("========================================")
	if failed {
		fmt.Println("❌ Some checks failed")
		fmt.Println("========================================")
		os.Exit(1)
	}
	fmt.Println("✅ All checks passed")
	fmt.Println("========================================")
}
