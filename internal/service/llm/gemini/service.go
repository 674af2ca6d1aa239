package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/service/llm"
	"github.com/google/generative-ai-go/genai"
)

const defaultModel = "gemini-2.0-flash"

var ErrEmptyResponse = errors.New("gemini: empty response")

type Service struct {
	client      *genai.Client
	modelName   string
	temperature *float32
}

func NewService(client *genai.Client, opts ...Option) llm.Service {
	svc := &Service{
		client:    client,
		modelName: defaultModel,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type Option func(service *Service)

func WithTemperature(temp float32) Option {
	return func(service *Service) {
		service.temperature = &temp
	}
}

func WithModel(name string) Option {
	return func(service *Service) {
		if name != "" {
			service.modelName = name
		}
	}
}

// model 每次请求新建, 系统指令和输出格式是按问题设置的
func (s *Service) model(q llm.Question) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	if s.temperature != nil {
		model.SetTemperature(*s.temperature)
	}
	if q.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(q.System)},
		}
	}
	if q.JSON {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

func (s *Service) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	resp, err := s.model(q).GenerateContent(ctx, genai.Text(q.Content))
	if err != nil {
		return llm.Answer{}, err
	}
	content := parseResponse(resp)
	if content == "" {
		return llm.Answer{}, ErrEmptyResponse
	}
	answer := llm.Answer{
		Content: content,
	}
	if resp.UsageMetadata != nil {
		answer.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		answer.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return answer, nil
}

func parseResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var resStr strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			continue
		}
		if resStr.Len() > 0 {
			resStr.WriteString("\n")
		}
		resStr.WriteString(string(text))
	}
	return resStr.String()
}
