package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/troikatech/collections-agent/pkg/utils"
)

// make-call logs in as the console operator and asks the running server
// to dial a customer into the voicebot.
//
//	API_URL=http://localhost:8080 OPERATOR_USER=ops OPERATOR_PASSWORD=... go run ./cmd/make-call +919876543210 [flow] [language]
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: go run ./cmd/make-call <phone> [chat|scripted] [language]")
	}

	baseURL := "http://localhost:8080"
	if url := os.Getenv("API_URL"); url != "" {
		baseURL = url
	}

	phone, err := utils.NormalizePhone(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid phone number: %v", err)
	}
	request := map[string]string{"phone": phone}
	if len(os.Args) > 2 {
		request["flow"] = os.Args[2]
	}
	if len(os.Args) > 3 {
		request["language"] = os.Args[3]
	}

	fmt.Println("========================================")
	fmt.Printf("Dialing %s\n", utils.MaskPhoneNumber(phone))
	fmt.Println("========================================")
	fmt.Println()

	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Println("Step 1: Logging in...")
	var login struct {
		AccessToken string `json:"access_token"`
	}
	status, body := post(client, baseURL+"/auth/token", "", map[string]string{
		"user":     os.Getenv("OPERATOR_USER"),
		"password": os.Getenv("OPERATOR_PASSWORD"),
	})
	if status != http.StatusOK {
		fmt.Printf("❌ Login failed (Status: %d)\n", status)
		fmt.Printf("Response: %s\n", body)
		log.Fatalf("Check OPERATOR_USER and OPERATOR_PASSWORD")
	}
	if err := json.Unmarshal(body, &login); err != nil || login.AccessToken == "" {
		log.Fatalf("No access token in login response: %s", body)
	}
	fmt.Println("✅ Login successful!")
	fmt.Println()

	fmt.Println("Step 2: Placing call...")
	status, body = post(client, baseURL+"/api/calls", login.AccessToken, request)
	fmt.Printf("Status Code: %d\n", status)

	if status == http.StatusAccepted {
		var result struct {
			TransientID string `json:"transient_id"`
			CallSid     string `json:"call_sid"`
			Status      string `json:"status"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			fmt.Println("Response:", string(body))
		} else {
			fmt.Println("✅ Call placed!")
			fmt.Printf("Transient ID: %s\n", result.TransientID)
			fmt.Printf("Call SID: %s\n", result.CallSid)
			fmt.Printf("Status: %s\n", result.Status)
		}
	} else {
		fmt.Printf("❌ Call failed (Status: %d)\n", status)
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &problem); err == nil && problem.Detail != "" {
			fmt.Printf("%s: %s\n", problem.Title, problem.Detail)
		} else {
			fmt.Println("Response:", string(body))
		}
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("✅ Complete!")
	fmt.Println("========================================")
}

func post(client *http.Client, url, token string, payload interface{}) (int, []byte) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request to %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, body
}
