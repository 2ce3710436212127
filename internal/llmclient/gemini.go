// File: internal/llmclient/gemini.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient against the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
	cfg    config.LLMSuggesterConfig
}

// NewGeminiClient initializes the client. The API key comes from
// configuration (CRUCIBLE_LLM_API_KEY in the environment).
func NewGeminiClient(ctx context.Context, cfg config.LLMSuggesterConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		logger: logger.Named("llm_client.gemini"),
		cfg:    cfg,
	}, nil
}

// Generate sends the prompts to the Gemini API and returns the generated
// text.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}
	if req.Options.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.Options.MaxOutputTokens)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.modelFor(req.Tier), genai.Text(req.UserPrompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini API returned no text content")
	}

	c.logger.Info("LLM generation complete (Gemini)",
		zap.Duration("duration", time.Since(start)),
		zap.String("tier", string(req.Tier)))

	return text, nil
}

// modelFor maps a capability tier onto a concrete model name. The
// configured model serves the powerful tier; the fast tier uses the flash
// variant of the same family.
func (c *GeminiClient) modelFor(tier schemas.ModelTier) string {
	if tier == schemas.TierFast {
		return "gemini-2.5-flash"
	}
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return "gemini-2.5-pro"
}
