package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ainotes/secondbrain/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const maxTags = 3

const tagPrompt = `Analyze this information and generate 1-3 relevant category tags.

Tags should be:
- Single words or short phrases (max 2 words)
- Lowercase
- General categories like: work, personal, recipe, contact, meeting, deadline, health, finance, travel, shopping, learning, etc.

Information: %s

Return ONLY the tags as a comma-separated list (e.g., "work, meeting" or "recipe, food").`

// ChatClient is the chat-completion surface the tagger and agent need.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ChatModel() string
}

// Tagger derives category tags from content with a single model call.
type Tagger struct {
	client ChatClient
}

func NewTagger(client ChatClient) *Tagger {
	return &Tagger{client: client}
}

// GenerateTags returns up to three normalized tags for the content. Tagging
// is best-effort: any failure yields an empty list, never an error, so a
// tagging outage cannot block a write.
func (t *Tagger) GenerateTags(ctx context.Context, content string) []string {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.client.ChatModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(tagPrompt, content)},
		},
	})
	if err != nil {
		log.Printf("tagger: generation failed: %v", err)
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}
	return ParseTags(resp.Choices[0].Message.Content)
}

// ParseTags splits a comma-separated model reply into normalized tags,
// capped at three.
func ParseTags(reply string) []string {
	parts := strings.Split(reply, ",")
	tags := domain.NormalizeTags(parts)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}
