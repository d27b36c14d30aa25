package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/exotel"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: go run ./cmd/check-exotel-call <call_sid>")
	}
	callSID := os.Args[1]

	client := exotel.NewClient(
		os.Getenv("EXOTEL_SUBDOMAIN"),
		os.Getenv("EXOTEL_ACCOUNT_SID"),
		os.Getenv("EXOTEL_API_KEY"),
		os.Getenv("EXOTEL_API_TOKEN"),
		os.Getenv("EXOTEL_EXOPHONE"),
		os.Getenv("EXOTEL_APP_ID"),
		zap.NewNop(),
	)
	if !client.Configured() {
		log.Fatalf("Missing Exotel environment variables")
	}

	fmt.Println("========================================")
	fmt.Printf("Checking Exotel Call Status: %s\n", callSID)
	fmt.Println("========================================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status, err := client.GetCallStatus(ctx, callSID)
	if err != nil {
		log.Fatalf("Failed to get call status: %v", err)
	}

	fmt.Println("✅ Exotel Call Status:")
	fmt.Println("----------------------------------------")
	fmt.Printf("Call SID: %s\n", status.Call.Sid)
	fmt.Printf("Status: %s\n", status.Call.Status)
	fmt.Printf("Direction: %s\n", status.Call.Direction)
	fmt.Printf("From: %s\n", status.Call.From)
	fmt.Printf("To: %s\n", status.Call.To)
	fmt.Printf("Start Time: %s\n", status.Call.StartTime)
	fmt.Printf("End Time: %s\n", status.Call.EndTime)
	fmt.Printf("Duration: %v\n", status.Call.Duration)

	fmt.Println()
	fmt.Println("Full Response:")
	fmt.Println("----------------------------------------")
	prettyJSON, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(prettyJSON))
}
