package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"persona-handler/logging"
	"persona-handler/prompts"
)

const DefaultTimeout = 2 * time.Minute

// Client errors
var (
	errSendFailed  = errors.New("send request failed")
	errEmbedFailed = errors.New("embedding failed")
)

// Client serves one provider endpoint
type Client struct {
	api            *openai.Client
	embeddingModel string
	logger         *logging.Logger
}

func NewClient(
	apiBase string,
	apiKey string,
	timeout time.Duration,
	logger *logging.Logger,
) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = apiBase
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		embeddingModel: string(openai.SmallEmbedding3),
		logger:         logger,
	}
}

// WithEmbeddingModel sets model used by Embed
func (c *Client) WithEmbeddingModel(model string) *Client {
	if model != "" {
		c.embeddingModel = model
	}
	return c
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	return c.chat(ctx, newChatRequest(req, toMessages(req.Prompt)))
}

// Describe attaches image to last user message of prompt
func (c *Client) Describe(
	ctx context.Context, req Request, imageURL string,
) (string, error) {
	msgs := toMessages(req.Prompt)

	last := -1
	for i, m := range msgs {
		if m.Role == openai.ChatMessageRoleUser {
			last = i
		}
	}
	if last < 0 {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
		})
		last = len(msgs) - 1
	}

	msgs[last].MultiContent = []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: msgs[last].Content,
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL,
				Detail: openai.ImageURLDetailAuto,
			},
		},
	}
	msgs[last].Content = ""

	return c.chat(ctx, newChatRequest(req, msgs))
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEmbedFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf(
			"%w: got %d vectors for %d texts",
			errEmbedFailed, len(resp.Data), len(texts),
		)
	}

	vectors := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if e.Index < 0 || e.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: index %d out of range", errEmbedFailed, e.Index)
		}
		vectors[e.Index] = e.Embedding
	}
	return vectors, nil
}

func (c *Client) chat(
	ctx context.Context, chatReq openai.ChatCompletionRequest,
) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Model: chatReq.Model, Reason: apiErr.Message}
		}
		return "", fmt.Errorf("%w: %v", errSendFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Model: chatReq.Model, Reason: "no choices"}
	}

	raw := resp.Choices[0].Message.Content
	c.logger.Debug(
		"raw response",
		logging.Model(chatReq.Model),
		logging.RawResponse(raw),
	)
	return raw, nil
}

func newChatRequest(
	req Request, msgs []openai.ChatCompletionMessage,
) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		LogitBias:   req.Params.LogitBias,
	}
}

func toMessages(p prompts.Prompt) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p))
	for _, m := range p {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return msgs
}
