package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ztpublic/turtlesoup/internal/config"
	"github.com/ztpublic/turtlesoup/internal/domain"
)

const judgeSystemInstruction = "You are the host of a turtle soup lateral thinking puzzle. " +
	"Players know only the surface story and ask yes/no questions to uncover the hidden truth. " +
	"Judge each question strictly against the truth. " +
	"Answer 'yes' or 'no' when the truth settles it, 'both' when it is partly true, " +
	"'irrelevant' when the question has no bearing on the truth, and 'unknown' when the truth does not say. " +
	"Never quote or paraphrase the truth itself. " +
	"Optionally add a short tip nudging the player toward a productive direction."

const extractSystemInstruction = "Extract the salient nouns and key terms from the player's question, " +
	"in order of appearance. Return only terms that carry meaning for guessing a hidden story; " +
	"skip filler words. Return an empty list if nothing qualifies."

// judgeSchema constrains the judge to a parseable verdict.
var judgeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer": {
			Type: genai.TypeString,
			Enum: []string{"yes", "no", "irrelevant", "both", "unknown"},
		},
		"tip": {Type: genai.TypeString},
	},
	Required: []string{"answer"},
}

var extractSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"keywords": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"keywords"},
}

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	cfg    config.GeminiConfig
}

// NewGeminiClient creates a Gemini-backed collaborator.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// JudgeQuestion decides the verdict for one question.
func (c *GeminiClient) JudgeQuestion(ctx context.Context, surface, truth string, recent []domain.QuestionEntry, question string) (Judgment, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.ChatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(judgeSystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   judgeSchema,
	}

	var prompt strings.Builder
	prompt.WriteString("Surface story:\n")
	prompt.WriteString(surface)
	prompt.WriteString("\n\nHidden truth:\n")
	prompt.WriteString(truth)
	if len(recent) > 0 {
		prompt.WriteString("\n\nRecent questions already answered:\n")
		for _, entry := range recent {
			fmt.Fprintf(&prompt, "Q: %s -> %s\n", entry.Question, entry.Answer)
		}
	}
	prompt.WriteString("\nNew question:\n")
	prompt.WriteString(question)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return Judgment{}, fmt.Errorf("gemini judge request failed: %w", err)
	}

	raw, err := firstText(resp)
	if err != nil {
		return Judgment{}, fmt.Errorf("gemini judge response: %w", err)
	}

	var verdict Judgment
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return Judgment{}, fmt.Errorf("parse judge verdict %q: %w", raw, err)
	}
	if !verdict.Answer.Valid() {
		return Judgment{}, fmt.Errorf("judge returned unknown verdict %q", verdict.Answer)
	}
	return verdict, nil
}

// ExtractKeywords pulls salient terms from a question.
func (c *GeminiClient) ExtractKeywords(ctx context.Context, question string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.ChatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractSystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractSchema,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return nil, fmt.Errorf("gemini keyword extraction failed: %w", err)
	}
	raw, err := firstText(resp)
	if err != nil {
		return nil, fmt.Errorf("gemini keyword response: %w", err)
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse keywords %q: %w", raw, err)
	}

	out := parsed.Keywords[:0]
	for _, kw := range parsed.Keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out, nil
}

// EmbedTexts computes one vector per text via the batch embedding API.
func (c *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	em := c.client.EmbeddingModel(c.cfg.EmbeddingModel)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding failed: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("gemini returned no embedding response")
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding data received for text %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (c *GeminiClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

// firstText returns the first text part of a generation response.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt), nil
		}
	}
	return "", fmt.Errorf("no text part in response")
}
