package chat

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

// Generator produces one reply for a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// NewGenerator returns the generator for cfg.ChatProvider wrapped in a
// circuit breaker. It returns nil, nil when the provider has no API key.
func NewGenerator(ctx context.Context, cfg config.Config) (Generator, error) {
	apiKey := cfg.ChatAPIKey()
	if apiKey == "" {
		return nil, nil
	}

	var (
		gen Generator
		err error
	)
	switch cfg.ChatProvider {
	case "anthropic":
		gen = NewAnthropicClient(apiKey, cfg.AnthropicModel)
	default:
		gen, err = NewGeminiClient(ctx, apiKey, cfg.GeminiModel)
	}
	if err != nil {
		return nil, err
	}
	return NewBreakerGenerator(cfg.ChatProvider, gen), nil
}

// BreakerGenerator stops calling a failing provider for a while after
// repeated errors.
type BreakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker[string]
}

func NewBreakerGenerator(name string, next Generator) *BreakerGenerator {
	return &BreakerGenerator{
		next: next,
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "chat-" + name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				utils.GetLogger().Warn("chat circuit breaker state change",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *BreakerGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	text, err := b.cb.Execute(func() (string, error) {
		return b.next.Generate(ctx, system, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}
	return text, nil
}
