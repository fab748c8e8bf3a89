package classifier

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/classify.md
var classifyPromptRaw string

var classifyPromptTmpl = template.Must(template.New("classify").Parse(classifyPromptRaw))

// DefaultTopics is the preferred label vocabulary. The model may step outside
// it when no listed label fits the content.
var DefaultTopics = []string{
	"hobbies", "work", "family", "relationships", "health", "food",
	"travel", "preferences", "schedule", "finance", "education",
}

const (
	maxTopics = 3

	// FallbackTopic labels content that matches nothing else.
	FallbackTopic = "general"
)

type Classifier struct {
	gemini adapter.Gemini
}

func New(gemini adapter.Gemini) *Classifier {
	return &Classifier{gemini: gemini}
}

// Classify infers topic labels for a memory statement. The result is never
// empty: when the model is unavailable or returns nothing usable, a keyword
// table decides, and "general" is the label of last resort.
func (c *Classifier) Classify(ctx context.Context, content string) []string {
	if c.gemini != nil {
		topics, err := c.classifyByModel(ctx, content)
		if err != nil {
			logging.From(ctx).Warn("topic classification fell back to keyword matching", "error", err)
		} else if len(topics) > 0 {
			return topics
		}
	}

	return classifyByKeywords(content)
}

func (c *Classifier) classifyByModel(ctx context.Context, content string) ([]string, error) {
	var buf bytes.Buffer
	if err := classifyPromptTmpl.Execute(&buf, map[string]any{
		"Content":    content,
		"MaxTopics":  maxTopics,
		"Vocabulary": strings.Join(DefaultTopics, ", "),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute classify prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := c.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify content")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	raw := stripCodeFence(resp.Candidates[0].Content.Parts[0].Text)

	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal topic labels", goerr.V("json", raw))
	}

	topics := model.NormalizeTopics(labels)
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	return topics, nil
}

// stripCodeFence removes a surrounding markdown code fence. Structured output
// normally returns bare JSON, but some model versions wrap it anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
