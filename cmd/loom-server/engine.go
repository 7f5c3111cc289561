package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// ChatEngine produces a streamed response for a prompt. Deltas are handed to
// emit as they arrive; the returned string is the full response.
type ChatEngine interface {
	Stream(ctx context.Context, history []canvas.Node, prompt string, model string, emit func(delta string) error) (string, error)
}

// OpenAIEngine generates through the OpenAI chat completion stream. The
// branch's ancestor chain becomes the message history, so every branch
// continues its own conversation.
type OpenAIEngine struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAIEngine(apiKey string, defaultModel string) *OpenAIEngine {
	return &OpenAIEngine{
		client:       openai.NewClient(apiKey),
		defaultModel: defaultModel,
	}
}

func (e *OpenAIEngine) Stream(ctx context.Context, history []canvas.Node, prompt string, model string, emit func(delta string) error) (string, error) {
	if model == "" {
		model = e.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)*2+1)
	for _, n := range history {
		if n.Prompt != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: n.Prompt,
			})
		}
		if n.Response != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: n.Response,
			})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	stream, err := e.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	defer func() {
		stream.Close()
	}()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := emit(delta); err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), nil
}

var _ ChatEngine = (*OpenAIEngine)(nil)

// EchoEngine is the fallback when no API key is configured: it streams a
// deterministic restatement of the prompt word by word, which is enough to
// exercise the whole wire contract end to end.
type EchoEngine struct{}

func (e *EchoEngine) Stream(ctx context.Context, history []canvas.Node, prompt string, model string, emit func(delta string) error) (string, error) {
	log.Debug().Int("history_len", len(history)).Msg("echo engine streaming")

	full := fmt.Sprintf("You said: %s", prompt)
	var sb strings.Builder
	for i, word := range strings.Fields(full) {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		delta := word
		if i > 0 {
			delta = " " + word
		}
		sb.WriteString(delta)
		if err := emit(delta); err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), nil
}

var _ ChatEngine = (*EchoEngine)(nil)
