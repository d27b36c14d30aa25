package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/troikatech/collections-agent/pkg/audio"
)

// test-websocket plays the carrier side of a voicebot stream: it sends the
// start event with inline customer fields, a few seconds of silence, then
// stop, and prints what the agent sends back.
func main() {
	wsURL := "ws://localhost:8080/voicebot/ws?sample-rate=8000&call_sid=test-call-123&from=%2B919876543210"
	if len(os.Args) > 1 {
		wsURL = os.Args[1]
	}
	listen := 10 * time.Second
	if len(os.Args) > 2 {
		d, err := time.ParseDuration(os.Args[2])
		if err != nil {
			log.Fatalf("Invalid listen duration: %v", err)
		}
		listen = d
	}

	fmt.Println("========================================")
	fmt.Println("Simulating a voicebot stream")
	fmt.Println("========================================")
	fmt.Printf("URL: %s\n", wsURL)
	fmt.Println()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		if resp != nil {
			fmt.Printf("Status: %s\n", resp.Status)
		}
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("✅ WebSocket connection established!")

	streamSID := "test_stream_123"
	send := func(v interface{}) {
		if err := conn.WriteJSON(v); err != nil {
			log.Fatalf("Failed to send event: %v", err)
		}
	}

	send(map[string]interface{}{"event": "connected"})
	send(map[string]interface{}{
		"event":      "start",
		"stream_sid": streamSID,
		"start": map[string]interface{}{
			"stream_sid": streamSID,
			"call_sid":   "test-call-123",
			"from":       "+919876543210",
			"media_format": map[string]interface{}{
				"encoding":    "raw/slin",
				"sample_rate": "8000",
			},
			"custom_parameters": map[string]interface{}{
				"customer_name":      "Test Customer",
				"loan_id":            "LN0000001234",
				"outstanding_amount": "4500",
				"due_date":           time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
				"language":           "en",
			},
		},
	})
	fmt.Println("✅ Start event sent!")

	go func() {
		silence := base64.StdEncoding.EncodeToString(make([]byte, audio.FrameBytes(8000)))
		ticker := time.NewTicker(audio.FrameDuration)
		defer ticker.Stop()
		deadline := time.After(listen)
		for chunk := 1; ; chunk++ {
			select {
			case <-deadline:
				_ = conn.WriteJSON(map[string]interface{}{"event": "stop", "stream_sid": streamSID})
				return
			case <-ticker.C:
				err := conn.WriteJSON(map[string]interface{}{
					"event":      "media",
					"stream_sid": streamSID,
					"media":      map[string]interface{}{"payload": silence, "chunk": chunk},
				})
				if err != nil {
					return
				}
			}
		}
	}()

	fmt.Printf("\nListening for %s...\n", listen)
	frames := 0
	conn.SetReadDeadline(time.Now().Add(listen + 5*time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Println("Agent closed the stream")
			} else {
				fmt.Printf("⚠️  Read ended: %v\n", err)
			}
			break
		}
		var ev struct {
			Event   string `json:"event"`
			Message string `json:"message"`
			Mark    struct {
				Name string `json:"name"`
			} `json:"mark"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			fmt.Printf("⚠️  Unparseable message: %s\n", raw)
			continue
		}
		switch ev.Event {
		case "media":
			frames++
		case "mark":
			fmt.Printf("mark %s after %d frames\n", ev.Mark.Name, frames)
		case "error":
			fmt.Printf("❌ error: %s\n", ev.Message)
		default:
			fmt.Printf("%s\n", ev.Event)
		}
	}

	fmt.Println()
	fmt.Printf("Audio frames received: %d (%s)\n", frames, time.Duration(frames)*audio.FrameDuration)
	fmt.Println("========================================")
	fmt.Println("✅ Test Complete!")
	fmt.Println("========================================")
}
