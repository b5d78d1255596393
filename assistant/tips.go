// Package assistant asks an LLM for prevention tips tailored to a new profile.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"HealthBot/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const preventionPrompt = `You are a friendly health educator for Homatt Health, a healthcare app in Uganda.
Given a user's health conditions and location, provide 3-5 practical prevention tips.
Use simple language (primary-school reading level).
Focus on affordable, locally available actions.
Keep each tip to 1-2 sentences.`

var ErrEmptyReply = errors.New("assistant returned no text")

type messageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Advisor struct {
	messages  messageService
	model     string
	maxTokens int64
}

func New(apiKey, model string, maxTokens int64) *Advisor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{messages: &client.Messages, model: model, maxTokens: maxTokens}
}

// PreventionTips returns a short list of tips for the profile's conditions
// and home town.
func (a *Advisor) PreventionTips(ctx context.Context, p model.Profile) (string, error) {
	msg, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: preventionPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(describe(p))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("request tips: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyReply
	}
	return strings.Join(parts, "\n\n"), nil
}

func describe(p model.Profile) string {
	var b strings.Builder
	if len(p.ExistingConditions) == 0 {
		b.WriteString("I have no known health conditions")
	} else {
		fmt.Fprintf(&b, "I have %s", strings.ToLower(strings.Join(p.ExistingConditions, ", ")))
	}
	if p.City != "" {
		fmt.Fprintf(&b, " and live in %s", p.City)
	}
	b.WriteString(".")
	if p.Age > 0 && p.Sex != "" {
		fmt.Fprintf(&b, " I am a %d year old %s.", p.Age, p.Sex)
	}
	return b.String()
}
