package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	originalSleep := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	defer func() { sleep = originalSleep }()

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-2.0-flash", nil, tempErr)
	chats.enqueue("gemini-2.0-flash", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "retry ok"}}},
		}},
	}, nil)

	g := &Generator{
		chats:      chats,
		model:      "gemini-2.0-flash",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	output, err := g.GenerateContent(context.Background(), Request{SystemInstruction: "system", Prompt: "message", JSON: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
		if call.config.ResponseMIMEType != jsonMIMEType {
			t.Fatalf("expected json response mime type, got %q", call.config.ResponseMIMEType)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	originalSleep := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	defer func() { sleep = originalSleep }()

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-2.0-flash", nil, tempErr)
	chats.enqueue("gemini-2.0-flash", nil, tempErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-2.0-flash",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	_, err := g.GenerateContent(context.Background(), Request{SystemInstruction: "sys", Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-2.0-flash", nil, quotaErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-2.0-flash",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	_, err := g.GenerateContent(context.Background(), Request{SystemInstruction: "sys", Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-2.0-flash", nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := &Generator{
		chats:      chats,
		model:      "gemini-2.0-flash",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	if _, err := g.GenerateContent(context.Background(), Request{Prompt: "msg"}); err == nil {
		t.Fatal("expected error for bad request")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorRejectsEmptyResponse(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-2.0-flash", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "   "}}}}},
	}, nil)

	g := &Generator{chats: chats, model: "gemini-2.0-flash", maxRetries: 1, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), Request{Prompt: "msg"}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(Request{
		SystemInstruction: "be terse",
		Prompt:            "p",
		Temperature:       0.3,
		MaxOutputTokens:   500,
		JSON:              true,
		Schema:            responseSchema(),
	})

	if cfg.Temperature == nil || *cfg.Temperature != 0.3 {
		t.Fatalf("unexpected temperature: %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 500 {
		t.Fatalf("unexpected max output tokens: %d", cfg.MaxOutputTokens)
	}
	if cfg.ResponseSchema == nil || cfg.ResponseSchema.Type != genai.TypeObject {
		t.Fatalf("expected object response schema")
	}

	plain := buildConfig(Request{Prompt: "p"})
	if plain.SystemInstruction != nil || plain.ResponseMIMEType != "" {
		t.Fatalf("expected no system instruction or mime type: %+v", plain)
	}
}

func TestParseRetryHint(t *testing.T) {
	tests := []struct {
		message string
		expect  time.Duration
		ok      bool
	}{
		{"quota exhausted, retry after 60 seconds", 60 * time.Second, true},
		{"Please retry in 1.5s.", 1500 * time.Millisecond, true},
		{"rate limited", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseRetryHint(tt.message)
		if ok != tt.ok || got != tt.expect {
			t.Fatalf("%q: expected (%v, %v), got (%v, %v)", tt.message, tt.expect, tt.ok, got, ok)
		}
	}
}

func TestNewGeneratorDefaultsModel(t *testing.T) {
	g, err := NewGenerator(context.Background(), "test-key", "  ", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model() != defaultModel {
		t.Fatalf("expected default model %q, got %q", defaultModel, g.Model())
	}
	if g.maxRetries != defaultMaxRetries {
		t.Fatalf("expected %d retries, got %d", defaultMaxRetries, g.maxRetries)
	}

	var missing *Generator
	if missing.Model() != "" {
		t.Fatalf("expected empty model for nil generator")
	}

	if _, err := NewGenerator(context.Background(), " ", "", 0, nil); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}
