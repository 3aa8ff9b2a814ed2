// Package chat implements the Recycling Coach chatbot on top of a
// generative-AI provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mdobak/go-xerrors"

	"github.com/Anuj2862/EcoSort-AI/metrics"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

const (
	UnconfiguredReply = "I'm not fully configured yet! Please set your Gemini API key in the .env file to enable AI conversations. For now, try the quick action buttons! 🤖"
	FallbackReply     = "I'm having a bit of trouble right now, but I'm here to help! Try asking me about disposal methods, recycling tips, or your environmental impact! 🌍"

	// historyWindow is how many prior messages are replayed to the model.
	historyWindow = 3

	maxMessageRunes = 2000
	maxHistoryRunes = 4000
)

const coachPrompt = `You are a friendly, encouraging AI Recycling Coach assistant named "Coach".
Your personality is like a supportive friend who's passionate about the environment.

Key traits:
- Friendly and encouraging (use emojis appropriately)
- Educational but not preachy
- Celebrates user actions
- Keeps responses under 100 words
- Uses simple language

Current context:`

// ScanContext describes the item the user scanned last.
type ScanContext struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Recyclable bool    `json:"recyclable"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string       `json:"message" validate:"required"`
	Context *ScanContext `json:"context,omitempty"`
	History []Message    `json:"history,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate trims the message and rejects a request without one. Oversized
// text and out-of-range confidence are clamped instead of rejected.
func (r *ChatRequest) Validate() error {
	r.Message = truncate(strings.TrimSpace(r.Message), maxMessageRunes)
	for i := range r.History {
		r.History[i].Content = truncate(r.History[i].Content, maxHistoryRunes)
	}
	if r.Context != nil {
		r.Context.Confidence = clamp(r.Context.Confidence, 0, 100)
	}

	err := getValidator().Struct(r)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%s is %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Coach answers chat messages. A nil generator means no provider is
// configured.
type Coach struct {
	gen     Generator
	timeout time.Duration
}

func NewCoach(gen Generator, timeout time.Duration) *Coach {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Coach{gen: gen, timeout: timeout}
}

func (c *Coach) Configured() bool {
	return c.gen != nil
}

// Reply never fails: provider problems turn into the fallback text.
func (c *Coach) Reply(ctx context.Context, req ChatRequest) string {
	if c.gen == nil {
		metrics.ChatResponses.WithLabelValues("unconfigured").Inc()
		return UnconfiguredReply
	}

	system, prompt := BuildPrompt(req)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.gen.Generate(genCtx, system, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty response from provider")
	}
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "chat generation failed", "error", xerrors.New(err))
		metrics.ChatResponses.WithLabelValues("fallback").Inc()
		return FallbackReply
	}

	metrics.ChatResponses.WithLabelValues("generated").Inc()
	return text
}

// BuildPrompt returns the system instruction, including the scan context,
// and the conversation transcript ending with an open "Coach:" turn.
func BuildPrompt(req ChatRequest) (system, prompt string) {
	var sb strings.Builder
	sb.WriteString(coachPrompt)
	if req.Context != nil && *req.Context != (ScanContext{}) {
		label := req.Context.Label
		if label == "" {
			label = "unknown"
		}
		recyclable := "No"
		if req.Context.Recyclable {
			recyclable = "Yes"
		}
		sb.WriteString("\nThe user just scanned: ")
		sb.WriteString(strings.ReplaceAll(label, "_", " "))
		sb.WriteString("\nConfidence: ")
		sb.WriteString(strconv.FormatFloat(req.Context.Confidence, 'f', -1, 64))
		sb.WriteString("%\nRecyclable: ")
		sb.WriteString(recyclable)
		sb.WriteString("\n")
	}
	system = sb.String()

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var tb strings.Builder
	tb.WriteString("Conversation:\n")
	for _, msg := range history {
		role := "Coach"
		if msg.Role == "user" {
			role = "User"
		}
		tb.WriteString(role)
		tb.WriteString(": ")
		tb.WriteString(msg.Content)
		tb.WriteString("\n")
	}
	tb.WriteString("User: ")
	tb.WriteString(req.Message)
	tb.WriteString("\nCoach:")
	return system, tb.String()
}
