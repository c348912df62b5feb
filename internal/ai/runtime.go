package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Runtime is implemented by chat-completion backends such as OpenRouter and
// a local Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ModelLister is implemented by runtimes that can report which models they
// serve. Callers use it to fail fast on unknown model names.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Provider identifiers accepted in model references.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the content of the first choice.
func (r *GenerateResponse) Text() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return r.Choices[0].Message.Content, nil
}

// RuntimeConfig carries the knobs shared by all runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey authenticates against OpenRouter.
	APIKey string
	// Host is the Ollama base URL.
	Host string
	// BaseURL overrides the OpenRouter endpoint; used in tests.
	BaseURL string
}

// RuntimeFactory builds a Runtime from cfg.
type RuntimeFactory func(RuntimeConfig) Runtime

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// NewRuntime creates the Runtime registered under provider.
func NewRuntime(provider string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("provider not supported: %q (available: %s)", provider, strings.Join(Providers(), ", "))
	}
	return f(cfg), nil
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime { return NewOpenRouter(c) })
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime { return NewOllama(c) })
}
