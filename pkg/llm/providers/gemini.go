package providers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/tombee/squash/pkg/errors"
	"github.com/tombee/squash/pkg/llm"
)

const geminiDefaultModel = "gemini-2.5-flash"

// GeminiProvider implements llm.Provider on the Gemini API through the
// official genai client.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini provider. A model name that is not a
// Gemini model falls back to gemini-2.5-flash.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &errors.ConfigError{
			Key:    "GEMINI_API_KEY",
			Reason: "API key is required for Gemini provider",
		}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &errors.ProviderError{Provider: "gemini", Message: "creating client", Cause: err}
	}
	if !strings.HasPrefix(model, "gemini") {
		model = geminiDefaultModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends the conversation to GenerateContent. System messages
// become the system instruction.
func (p *GeminiProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}

	model := p.model
	if strings.HasPrefix(req.Model, "gemini") {
		model = req.Model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.MessageRoleSystem:
			system = append(system, m.Content)
		case llm.MessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	out := &llm.CompletionResponse{
		Content:      resp.Text(),
		FinishReason: llm.FinishReasonStop,
		Model:        model,
		RequestID:    resp.ResponseID,
		Created:      time.Now(),
	}
	if out.RequestID == "" {
		out.RequestID = uuid.New().String()
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = mapGeminiFinishReason(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.TokenUsage{
			InputTokens:     int(u.PromptTokenCount),
			OutputTokens:    int(u.CandidatesTokenCount),
			TotalTokens:     int(u.TotalTokenCount),
			CacheReadTokens: int(u.CachedContentTokenCount),
		}
	}
	return out, nil
}

func mapGeminiFinishReason(r genai.FinishReason) llm.FinishReason {
	switch r {
	case genai.FinishReasonMaxTokens:
		return llm.FinishReasonLength
	case genai.FinishReasonSafety:
		return llm.FinishReasonContentFilter
	case "", genai.FinishReasonStop:
		return llm.FinishReasonStop
	default:
		return llm.FinishReasonError
	}
}

// classifyGeminiError maps genai API errors onto ProviderError so the
// retry wrapper can see the status code.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &errors.ProviderError{
			Provider:   "gemini",
			StatusCode: apiErr.Code,
			Message:    strings.TrimSpace(apiErr.Status + " " + apiErr.Message),
			Suggestion: suggestionForStatus("GEMINI_API_KEY", apiErr.Code),
			Cause:      err,
		}
	}
	return &errors.ProviderError{Provider: "gemini", Message: "request failed", Cause: err}
}
