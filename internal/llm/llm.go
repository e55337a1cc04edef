package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"newsdesk/internal/core"
)

const (
	// DefaultModel is the default Gemini model used for section ranking.
	DefaultModel = "gemini-flash-lite-latest"

	sectionPromptTemplate = `You are curating the %q section of a daily news newsletter.

Below is a numbered list of candidate articles (title, publisher, description).
Pick the %d most newsworthy, non-overlapping stories for this section, ordered
by importance, and write a one-or-two sentence summary for each in a neutral,
informative tone.
%s%s
Respond with ONLY a JSON array, no prose, in this exact shape:
[{"index": <1-based candidate number>, "summary": "<your summary>"}]

Candidates:
%s`

	overviewPromptTemplate = `You are writing the opening of a daily news newsletter.

Below is a numbered list of today's selected stories across all sections.
Write a 2-3 sentence overview of the day's news, then pick the %d most
important stories as highlights.

Respond with ONLY a JSON object, no prose, in this exact shape:
{"overview": "<2-3 sentences>", "highlights": [<1-based story numbers>]}

Stories:
%s`
)

// Client talks to the Gemini API. It implements Oracle.
type Client struct {
	modelName string
	gClient   *genai.Client
}

// NewClient creates a Gemini-backed oracle. The API key is taken from
// GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY or GOOGLE_AI_API_KEY, falling back
// to gemini.api_key in config; the model from the argument, gemini.model in
// config, or DefaultModel.
func NewClient(ctx context.Context, modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key in config")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: modelName, gClient: gClient}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

// RankSection asks the model to choose and summarize up to req.Limit
// candidates. Any transport, parse or validation failure is returned as an
// error for the caller to recover from heuristically.
func (c *Client) RankSection(ctx context.Context, req SectionRequest) (*SectionResult, error) {
	if len(req.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates for section %s", req.Section)
	}

	limit := req.Limit
	if limit <= 0 || limit > len(req.Candidates) {
		limit = len(req.Candidates)
	}

	var exclude string
	if len(req.ExcludeTitles) > 0 {
		exclude = fmt.Sprintf("\nAlready selected elsewhere (avoid duplicating these):\n- %s\n",
			strings.Join(req.ExcludeTitles, "\n- "))
	}
	var instructions string
	if req.Instructions != "" {
		instructions = "\n" + req.Instructions + "\n"
	}

	prompt := fmt.Sprintf(sectionPromptTemplate,
		req.Section, limit, exclude, instructions, formatCandidates(req.Candidates))

	text, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("section %s ranking failed: %w", req.Section, err)
	}

	var picks []struct {
		Index   int    `json:"index"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &picks); err != nil {
		return nil, fmt.Errorf("malformed oracle response for section %s: %w", req.Section, err)
	}

	var items []core.SectionItem
	seen := map[int]bool{}
	for _, pick := range picks {
		if pick.Index < 1 || pick.Index > len(req.Candidates) || seen[pick.Index] {
			continue
		}
		seen[pick.Index] = true
		a := req.Candidates[pick.Index-1]
		summary := strings.TrimSpace(pick.Summary)
		if summary == "" {
			summary = deriveSummary(a)
		}
		items = append(items, core.SectionItem{
			Title:     a.Title,
			Summary:   summary,
			Link:      a.Link,
			Publisher: a.Publisher,
			Slug:      a.Slug,
			PubDate:   a.PubDate,
		})
		if len(items) == limit {
			break
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("oracle returned no usable picks for section %s", req.Section)
	}

	return &SectionResult{Items: items, Model: c.modelName}, nil
}

// Overview asks the model for the cross-section overview and highlight picks.
func (c *Client) Overview(ctx context.Context, req OverviewRequest) (*OverviewResult, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("no items to summarize")
	}

	highlights := req.Highlights
	if highlights <= 0 {
		highlights = 3
	}
	if highlights > len(req.Items) {
		highlights = len(req.Items)
	}

	var sb strings.Builder
	for i, item := range req.Items {
		fmt.Fprintf(&sb, "%d. %s (%s): %s\n", i+1, item.Title, item.Publisher, item.Summary)
	}

	text, err := c.generateContent(ctx, fmt.Sprintf(overviewPromptTemplate, highlights, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("overview generation failed: %w", err)
	}

	var parsed struct {
		Overview   string `json:"overview"`
		Highlights []int  `json:"highlights"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed overview response: %w", err)
	}
	if strings.TrimSpace(parsed.Overview) == "" {
		return nil, fmt.Errorf("empty overview in oracle response")
	}

	var picked []core.SectionItem
	seen := map[int]bool{}
	for _, idx := range parsed.Highlights {
		if idx < 1 || idx > len(req.Items) || seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, req.Items[idx-1])
		if len(picked) == highlights {
			break
		}
	}

	return &OverviewResult{
		Overview:   strings.TrimSpace(parsed.Overview),
		Highlights: picked,
		Model:      c.modelName,
	}, nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func formatCandidates(candidates []core.Article) string {
	var sb strings.Builder
	for i, a := range candidates {
		desc := a.Description
		if len(desc) > 300 {
			desc = desc[:300] + "..."
		}
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n   %s\n", i+1, a.Title, a.Publisher,
			a.PubDate.Format(time.RFC822), desc)
	}
	return sb.String()
}

// stripCodeFence removes a surrounding markdown code fence, which Gemini
// tends to add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// deriveSummary falls back to the article's own description when the model
// picked a story but gave no summary.
func deriveSummary(a core.Article) string {
	desc := strings.TrimSpace(a.Description)
	if desc == "" {
		return a.Title
	}
	if len(desc) > 280 {
		if cut := strings.LastIndex(desc[:280], ". "); cut > 80 {
			return desc[:cut+1]
		}
		return desc[:280] + "..."
	}
	return desc
}
