package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const openaiModel = "gpt-5.2"

// GPT-5.2 pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 1.75  // $1.75 per 1M input tokens
	openaiOutputPricePerMillion = 14.00 // $14.00 per 1M output tokens
)

// OpenAIModel issues multimodal requests to OpenAI's chat completions API.
// It exists as an alternative provider behind the same Model interface.
type OpenAIModel struct {
	client openai.Client
}

// NewOpenAIModel creates an OpenAI-backed model.
func NewOpenAIModel(apiKey string) *OpenAIModel {
	return &OpenAIModel{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name implements the Model interface.
func (o *OpenAIModel) Name() string {
	return openaiModel
}

// Generate implements the Model interface. Images are attached as base64
// data URLs. OpenAI's JSON mode is not requested here; the prompts already
// instruct a bare-JSON response and the sanitizer handles the rest.
func (o *OpenAIModel) Generate(ctx context.Context, req Request) (string, error) {
	contentParts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
	}
	for _, img := range req.Images {
		b64Data := base64.StdEncoding.EncodeToString(img.Data)
		dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, b64Data)
		contentParts = append(contentParts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model: openaiModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(contentParts),
		},
	}
	if req.Params.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Params.MaxOutputTokens))
	}
	if req.Params.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Params.Temperature))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	text := resp.Choices[0].Message.Content

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, openaiInputPricePerMillion, openaiOutputPricePerMillion),
	}

	log.Info().
		Str("model", openaiModel).
		Int("imageCount", len(req.Images)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return text, nil
}
