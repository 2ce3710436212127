// File: internal/analyzer/llm.go
package analyzer

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const llmSystemPrompt = `You are an automated code-repair engine. You receive a build, lint,
or test error together with the relevant source excerpt, and you respond with candidate
fixes as a strict JSON array. Each element has the shape:
{"diff": "<unified diff with a/ and b/ path prefixes>", "confidence": <0.0-1.0>, "explanation": "<one sentence>"}
Rules:
- The diff must apply cleanly to the source excerpt shown.
- Propose at most three candidates, most likely first.
- If you cannot propose a plausible fix, respond with [].
- Respond with the JSON array only. No markdown, no commentary.`

// llmSuggester asks a language model for candidate fixes. It is strictly
// optional: any transport or parse failure surfaces as an error that the
// analyzer logs and ignores.
type llmSuggester struct {
	logger *zap.Logger
	client schemas.LLMClient
}

// NewLLMSuggester wraps an LLM client as a hint backend.
func NewLLMSuggester(logger *zap.Logger, client schemas.LLMClient) HintSuggester {
	return &llmSuggester{logger: logger.Named("llm_suggester"), client: client}
}

func (s *llmSuggester) Name() string { return "llm" }

func (s *llmSuggester) Suggest(ctx context.Context, report schemas.ErrorReport, classified schemas.ClassifiedError) ([]schemas.FixHint, error) {
	prompt, err := s.buildPrompt(report, classified)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: llmSystemPrompt,
		UserPrompt:   prompt,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	return parseLLMHints(raw)
}

func (s *llmSuggester) buildPrompt(report schemas.ErrorReport, classified schemas.ClassifiedError) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\n", report.Language)
	fmt.Fprintf(&b, "Error category: %s\n\n", classified.Category)
	fmt.Fprintf(&b, "Error output:\n%s\n", strings.TrimSpace(report.RawText))

	if classified.File != "" && classified.Line > 0 {
		lines, err := snapshotLines(report.SnapshotDir, classified.File)
		if err == nil && classified.Line <= len(lines) {
			start := classified.Line - 6
			if start < 0 {
				start = 0
			}
			end := classified.Line + 5
			if end > len(lines) {
				end = len(lines)
			}
			fmt.Fprintf(&b, "\nExcerpt of %s (lines %d-%d, 1-based):\n", classified.File, start+1, end)
			for i := start; i < end; i++ {
				fmt.Fprintf(&b, "%5d | %s\n", i+1, lines[i])
			}
		}
	}
	return b.String(), nil
}

// parseLLMHints decodes the model response into hints. Markdown fences are
// tolerated; everything else about the contract is enforced so a
// malformed response never reaches the sandbox.
func parseLLMHints(raw string) ([]schemas.FixHint, error) {
	cleaned := stripMarkdownFences(raw)

	var decoded []struct {
		Diff        string  `json:"diff"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("llm response is not a valid JSON array: %w", err)
	}

	var hints []schemas.FixHint
	for _, d := range decoded {
		if strings.TrimSpace(d.Diff) == "" {
			continue
		}
		if !strings.Contains(d.Diff, "--- ") || !strings.Contains(d.Diff, "+++ ") {
			return nil, fmt.Errorf("llm candidate is missing unified diff headers")
		}
		if d.Confidence < 0 {
			d.Confidence = 0
		}
		if d.Confidence > 1 {
			d.Confidence = 1
		}
		hints = append(hints, schemas.FixHint{
			Diff:        d.Diff,
			Confidence:  d.Confidence,
			Explanation: d.Explanation,
		})
	}
	return hints, nil
}

// stripMarkdownFences removes a surrounding ```json ... ``` block if the
// model wrapped its output despite instructions.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
