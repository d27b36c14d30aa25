package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/store"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/mongo"
	"github.com/troikatech/collections-agent/pkg/utils"
)

const usage = `Usage: go run ./cmd/add-customer <phone> <name> <loan_id> <outstanding_amount> [due_date YYYY-MM-DD] [language] [state]`

// add-customer writes one customer to the Mongo customers collection so
// it can be dialed from the console.
func main() {
	if len(os.Args) < 5 {
		log.Fatal(usage)
	}

	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "temp-secret-for-script-only")
	}
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	p, err := parseCustomer(os.Args[1:])
	if err != nil {
		log.Fatalf("%v\n%s", err, usage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, logger.Log)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("Failed to disconnect MongoDB: %v", err)
		}
	}()

	fmt.Println("========================================")
	fmt.Println("Adding Customer")
	fmt.Println("========================================")

	if err := store.NewMongoStore(mongoClient, logger.Log).UpsertCustomer(ctx, p); err != nil {
		log.Fatalf("Failed to save customer: %v", err)
	}

	fmt.Printf("✅ Saved %s (%s), loan ending %s\n", p.Name, utils.MaskPhoneNumber(p.Phone), p.LoanSuffix())
}

func parseCustomer(args []string) (*session.CallParticipant, error) {
	phone, err := utils.NormalizePhone(args[0])
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(args[3], ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outstanding amount %q", args[3])
	}
	p := &session.CallParticipant{
		Phone:             phone,
		Name:              args[1],
		LoanRef:           args[2],
		OutstandingAmount: amount,
	}
	if len(args) > 4 && args[4] != "" {
		due, err := time.Parse("2006-01-02", args[4])
		if err != nil {
			return nil, fmt.Errorf("invalid due date %q", args[4])
		}
		p.DueDate = due
	}
	if len(args) > 5 {
		lang, ok := language.Parse(args[5])
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", args[5])
		}
		p.PreferredLanguage = string(lang)
	}
	if len(args) > 6 {
		p.State = args[6]
	}
	return p, p.Validate()
}
