package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loginsight-backend/config"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const rateLimitRetries = 3

type generateFunc func(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)

type geminiCompleter struct {
	model       string
	temperature float32
	generate    generateFunc
	newBackOff  func() backoff.BackOff
}

func NewGeminiCompleter(cfg *config.Config) (Completer, error) {
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("API_KEY is empty, Gemini calls will be rejected")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		return nil, fmt.Errorf("gemini: %w", err)
	}

	c := &geminiCompleter{
		model:       cfg.LLM.Model,
		temperature: float32(cfg.LLM.Temperature),
		newBackOff:  defaultBackOff,
	}
	c.generate = func(ctx context.Context, contents []*genai.Content, gc *genai.GenerateContentConfig) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, c.model, contents, gc)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	log.Info().Str("model", c.model).Msg("Gemini completer initialized")
	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 8 * time.Second
	return b
}

func (c *geminiCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	contents := buildContents(prompt.Messages)
	temp := c.temperature
	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	}
	if prompt.System != "" {
		gc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}

	var text string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := c.generate(ctx, contents, gc)
		if err != nil {
			if IsRateLimited(err) && ctx.Err() == nil {
				log.Warn().Err(err).Int("attempt", attempt).Msg("Gemini rate limited, backing off")
				return err
			}
			return backoff.Permanent(err)
		}
		if strings.TrimSpace(out) == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), rateLimitRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		log.Error().Err(err).Int("attempts", attempt).Msg("Gemini request failed")
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	log.Debug().Str("generated_text", text).Msg("Gemini returned completion")
	return text, nil
}

func buildContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return contents
}
