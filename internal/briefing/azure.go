package briefing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"brasa/internal/config"
)

const systemPrompt = "You write short, factual pre-shift briefings for a churrascaria kitchen."

// newAzure builds a Polisher on an Azure OpenAI deployment.
func newAzure(cfg config.LLMConfig) (*Polisher, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.Deployment == "" {
		return nil, errors.New("Azure OpenAI configuration missing: endpoint, api key and deployment are required")
	}

	client, err := azopenai.NewClientWithKeyCredential(cfg.Endpoint, azcore.NewKeyCredential(cfg.APIKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}
	deployment := cfg.Deployment

	return newPolisher(func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
			Messages: []azopenai.ChatRequestMessageClassification{
				&azopenai.ChatRequestSystemMessage{Content: azopenai.NewChatRequestSystemMessageContent(systemPrompt)},
				&azopenai.ChatRequestUserMessage{Content: azopenai.NewChatRequestUserMessageContent(prompt)},
			},
			MaxTokens:      to.Ptr(int32(maxTokens)),
			Temperature:    to.Ptr(float32(temperature)),
			DeploymentName: to.Ptr(deployment),
		}, nil)
		if err != nil {
			return "", fmt.Errorf("Azure OpenAI completion failed: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
			return "", errors.New("empty response from Azure OpenAI")
		}
		return *resp.Choices[0].Message.Content, nil
	}, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}
