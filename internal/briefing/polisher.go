package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"brasa/internal/config"
	"brasa/internal/prep"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	OpenAIProvider ProviderType = "openai"
	AzureProvider  ProviderType = "azure"
)

const (
	maxEntriesInPrompt = 6
	temperature        = 0.2
	maxTokens          = 160
)

// Polisher rewrites the rule-based prep briefing into a short kitchen
// huddle message. The grade and numbers never change, only the wording.
type Polisher struct {
	complete func(ctx context.Context, prompt string) (string, error)
	timeout  time.Duration
}

// New creates a Polisher on model. A zero timeout means five seconds.
func New(model llms.Model, timeout time.Duration) *Polisher {
	return newPolisher(func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, model, prompt,
			llms.WithTemperature(temperature),
			llms.WithMaxTokens(maxTokens),
		)
	}, timeout)
}

func newPolisher(complete func(context.Context, string) (string, error), timeout time.Duration) *Polisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Polisher{complete: complete, timeout: timeout}
}

// NewFromConfig initializes the configured provider.
func NewFromConfig(cfg config.LLMConfig) (*Polisher, error) {
	switch ProviderType(cfg.Provider) {
	case OpenAIProvider:
		if cfg.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable not set")
		}
		llm, err := openai.New(
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI model: %w", err)
		}
		return New(llm, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	case AzureProvider:
		return newAzure(cfg)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Provider)
	}
}

// Polish asks the model for a rewording of plan's briefing.
func (p *Polisher) Polish(ctx context.Context, plan prep.Plan) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.complete(ctx, Prompt(plan))
	if err != nil {
		return "", fmt.Errorf("briefing generation failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("briefing generation returned no text")
	}
	return out, nil
}

// Prompt renders the plan facts the model may use.
func Prompt(plan prep.Plan) string {
	var b strings.Builder
	b.WriteString("You brief a churrascaria kitchen team before service. ")
	b.WriteString("Rewrite the assessment below as two short sentences for the huddle. ")
	b.WriteString("Keep every number and the risk level unchanged. Do not invent facts.\n\n")

	fmt.Fprintf(&b, "Date: %s\nForecast guests: %d\nTotal meat: %.1f lb\n", plan.Date, plan.ForecastGuests, plan.TotalWeightTarget)
	fmt.Fprintf(&b, "Projected cost per guest: $%.2f (target $%.2f, ceiling $%.2f)\n",
		plan.CostPerGuest, plan.Briefing.CostTarget, plan.Briefing.Ceiling)
	fmt.Fprintf(&b, "Risk level: %s\n", plan.Briefing.Level)
	if len(plan.Excluded) > 0 {
		fmt.Fprintf(&b, "Out of stock today: %s\n", strings.Join(plan.Excluded, ", "))
	}

	b.WriteString("Top proteins:\n")
	n := 0
	for _, e := range plan.Entries {
		if e.Excluded || n == maxEntriesInPrompt {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.1f lb, %d %s\n", e.Protein, e.RecommendedWeight, e.RecommendedUnits, strings.ToLower(e.UnitName))
		n++
	}
	fmt.Fprintf(&b, "\nAssessment: %s\n", plan.Briefing.Message)
	return b.String()
}
