package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

const judgeSystemPrompt = `You are a spam reviewer for a group chat moderation bot.
A message was flagged because it matched a moderation rule. Decide whether the
message really is spam, scam or unwanted advertising.

Consider the message as a whole: a rule word appearing in an ordinary
conversation (news discussion, a genuine question) is NOT spam. Promotion of
investment schemes, guaranteed profits, contact-me-to-earn offers, adult
services and link farms IS spam.

Reply with exactly YES (spam) or NO (not spam).`

// llmJudge implements the optional spam second opinion on an
// OpenAI-compatible chat completion API
type llmJudge struct {
	client *openai.Client
	model  string
}

// NewLLMJudge creates a spam judge. Returns nil when apiKey is empty, which
// disables second opinions entirely.
func NewLLMJudge(apiKey, baseURL, model string) repo.SpamJudge {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &llmJudge{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// IsSpam asks the model whether the flagged message really is spam
func (j *llmJudge) IsSpam(ctx context.Context, text, matchedRule string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	user := fmt.Sprintf("Matched rule: %s\n\nMessage:\n%s", matchedRule, text)

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1, // low temperature for deterministic responses
		MaxTokens:   5,   // YES or NO
	})
	if err != nil {
		return false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("no response choices")
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	return strings.HasPrefix(answer, "YES"), nil
}
