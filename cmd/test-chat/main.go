package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/env"
)

// test-chat holds a typed conversation with the collections persona using
// the configured chat providers, printing the status the model reports
// after each reply.
//
//	go run ./cmd/test-chat [language]
func main() {
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "temp-secret-for-script-only")
	}
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lang := language.English
	if len(os.Args) > 1 {
		l, ok := language.Parse(os.Args[1])
		if !ok {
			log.Fatalf("Unsupported language %q", os.Args[1])
		}
		lang = l
	}

	ctx := context.Background()
	timeout := time.Duration(cfg.AITimeoutMs) * time.Millisecond
	var providers []ai.ChatProvider
	if cfg.AnthropicApiKey != "" {
		providers = append(providers, ai.NewAnthropicProvider(cfg.AnthropicApiKey, cfg.AnthropicModel, cfg.AnthropicMaxTokens, timeout, zap.NewNop()))
	}
	if cfg.OpenAIApiKey != "" {
		providers = append(providers, ai.NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIModel, cfg.OpenAIMaxTokens, timeout, zap.NewNop()))
	}
	if cfg.GeminiApiKey != "" {
		providers = append(providers, ai.NewGeminiProvider(ctx, cfg.GeminiApiKey, cfg.GeminiModel, cfg.GeminiMaxTokens, timeout, zap.NewNop()))
	}
	if len(providers) == 0 {
		fmt.Println("❌ ERROR: set ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY")
		os.Exit(1)
	}
	chat := ai.NewManager(ai.Ordered(providers, cfg.ProviderOrder()), zap.NewNop())

	customer := &session.CallParticipant{
		Name:              "Ravi Kumar",
		LoanRef:           "LN0000451234",
		OutstandingAmount: 4500,
		DueDate:           time.Now().AddDate(0, 0, 3),
		PreferredLanguage: string(lang),
	}
	policy := dialogue.NewPolicy(chat, customer, lang, dialogue.Options{Timeout: timeout}, zap.NewNop())

	fmt.Println("========================================")
	fmt.Printf("Chatting as the collections agent (%s)\n", lang.Name())
	fmt.Println("Type the customer's replies; empty line quits")
	fmt.Println("========================================")

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\ncustomer> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			return
		}
		start := time.Now()
		reply, err := policy.Send(ctx, line)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			continue
		}
		fmt.Printf("agent> %s\n", reply.Text)
		fmt.Printf("       [status=%s, %s]\n", reply.Status, time.Since(start).Round(time.Millisecond))
		if reply.Status != "" && reply.Status != dialogue.StatusContinue {
			fmt.Println("Conversation finished")
			return
		}
	}
}
