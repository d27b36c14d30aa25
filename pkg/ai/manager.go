package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/client"
)

// Manager is a ChatProvider that tries providers in order, each behind
// its own circuit breaker and retry guard.
type Manager struct {
	providers []ChatProvider
	guards    map[string]*client.Guard
	logger    *zap.Logger
}

// NewManager creates a new chat provider manager
func NewManager(providers []ChatProvider, logger *zap.Logger) *Manager {
	guards := make(map[string]*client.Guard, len(providers))
	for _, p := range providers {
		guards[p.Name()] = client.NewDefaultGuard("llm-" + p.Name())
	}
	return &Manager{
		providers: providers,
		guards:    guards,
		logger:    logger,
	}
}

// Name returns the provider name
func (m *Manager) Name() string {
	return "manager"
}

// IsAvailable reports whether any provider is configured
func (m *Manager) IsAvailable() bool {
	return m.GetAvailableProvider() != nil
}

// GetAvailableProvider returns the first available provider
func (m *Manager) GetAvailableProvider() ChatProvider {
	for _, provider := range m.providers {
		if provider.IsAvailable() {
			return provider
		}
	}
	return nil
}

// Chat runs req against each available provider until one succeeds
func (m *Manager) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	var lastErr error
	for _, provider := range m.providers {
		if !provider.IsAvailable() {
			continue
		}

		var text string
		err := m.guards[provider.Name()].Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = provider.Chat(ctx, req)
			return err
		})
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		m.logger.Warn("AI provider failed, trying next",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}

	if lastErr == nil {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("all AI providers failed: %w", lastErr)
}

// Ordered returns providers sorted by the given names; unknown names are
// ignored and unnamed providers keep their relative order at the end.
func Ordered(providers []ChatProvider, order []string) []ChatProvider {
	byName := make(map[string]ChatProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	out := make([]ChatProvider, 0, len(providers))
	seen := make(map[string]bool, len(providers))
	for _, name := range order {
		if p, ok := byName[name]; ok && !seen[name] {
			out = append(out, p)
			seen[name] = true
		}
	}
	for _, p := range providers {
		if !seen[p.Name()] {
			out = append(out, p)
		}
	}
	return out
}

// IsUnavailable reports whether err means no provider was configured
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
