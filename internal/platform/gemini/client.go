package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

// Client implements textgen.Client against the Gemini API. Like the OpenAI
// client it is single-attempt; the textgen wrappers own retry and limits.
type Client struct {
	log        *logger.Logger
	client     *genai.Client
	model      string
	embedModel string
}

var _ textgen.Client = (*Client)(nil)

func NewClient(ctx context.Context, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-1.5-flash"
	}
	embedModel := strings.TrimSpace(os.Getenv("GEMINI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Client{
		log:        log.With("service", "GeminiClient"),
		client:     client,
		model:      model,
		embedModel: embedModel,
	}, nil
}

func (c *Client) Close() error { return c.client.Close() }

func (c *Client) GenerateText(ctx context.Context, system, user string) (string, error) {
	m := c.client.GenerativeModel(c.model)
	if strings.TrimSpace(system) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	return collectText(resp)
}

func (c *Client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	m := c.client.GenerativeModel(c.model)
	if strings.TrimSpace(system) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	m.GenerationConfig.ResponseMIMEType = "application/json"

	// Gemini JSON mode takes no schema object; restate it in the prompt.
	schemaJSON, _ := json.Marshal(schema)
	prompt := fmt.Sprintf("%s\n\nRespond with a single JSON object named %q matching this JSON schema exactly:\n%s",
		user, schemaName, string(schemaJSON))

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	text, err := collectText(resp)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("gemini json output decode: %w", err)
	}
	return out, nil
}

func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	em := c.client.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, s := range inputs {
		if strings.TrimSpace(s) == "" {
			s = " "
		}
		batch = batch.AddContent(genai.Text(s))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("gemini embeddings count mismatch: requested=%d returned=%d", len(inputs), len(res.Embeddings))
	}
	out := make([][]float32, len(inputs))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
