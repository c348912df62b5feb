package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/KaramelBytes/labelsift/internal/ai"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/utils"
)

// LLM labels texts by asking a chat model to pick one vocabulary label.
type LLM struct {
	runtime  ai.Runtime
	provider string
	model    string
	vocab    dataset.Vocabulary
}

func newLLM(ctx context.Context, provider, model string, opts Options) (*LLM, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("model name is empty")
	}
	rt, err := ai.NewRuntime(provider, opts.Runtime)
	if err != nil {
		return nil, err
	}
	if err := checkModel(ctx, rt, provider, model); err != nil {
		return nil, err
	}
	return NewLLM(rt, provider, model, opts.Vocabulary), nil
}

// NewLLM wraps an existing runtime without checking that model exists.
func NewLLM(rt ai.Runtime, provider, model string, vocab dataset.Vocabulary) *LLM {
	if len(vocab) == 0 {
		vocab = dataset.DefaultVocabulary
	}
	return &LLM{runtime: rt, provider: provider, model: model, vocab: vocab}
}

// Classes returns the vocabulary the model is asked to choose from.
func (l *LLM) Classes() []string { return append([]string(nil), l.vocab...) }

// checkModel asks runtimes that can list models whether model is served.
func checkModel(ctx context.Context, rt ai.Runtime, provider, model string) error {
	if provider == ai.ProviderOpenRouter && opensWithoutKey(rt) {
		return errors.New("OpenRouter API key is missing (set LABELSIFT_API_KEY)")
	}
	lister, ok := rt.(ai.ModelLister)
	if !ok {
		return nil
	}
	names, err := lister.Models(ctx)
	if err != nil {
		return ai.Hint(err, provider, model)
	}
	for _, n := range names {
		if n == model || n == model+":latest" {
			return nil
		}
	}
	return ai.Hint(&ai.ModelNotFoundError{Model: model}, provider, model)
}

func opensWithoutKey(rt ai.Runtime) bool {
	c, ok := rt.(*ai.Client)
	return ok && !c.HasKey()
}

// maxCommentTokens bounds the comment part of a prompt; longer comments are
// clipped so one row cannot exceed small local context windows.
const maxCommentTokens = 1024

func (l *LLM) prompt(text string) ai.GenerateRequest {
	text, _ = utils.ClipToTokens(text, maxCommentTokens)
	return ai.GenerateRequest{
		Model: l.model,
		Messages: []ai.Message{
			{Role: "system", Content: "You label the sentiment of user comments. Reply with exactly one word from this list and nothing else: " + strings.Join(l.vocab, ", ") + "."},
			{Role: "user", Content: text},
		},
		MaxTokens: 8,
	}
}

// Predict implements Classifier. Texts are labeled one request at a time;
// the first failure aborts the batch.
func (l *LLM) Predict(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		resp, err := l.runtime.Generate(ctx, l.prompt(t))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, ai.Hint(err, l.provider, l.model))
		}
		answer, err := resp.Text()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		label, ok := l.parse(answer)
		if !ok {
			return nil, fmt.Errorf("row %d: model answered %q, which is none of %s", i+1, answer, strings.Join(l.vocab, ", "))
		}
		out[i] = label
	}
	return out, nil
}

// parse accepts an exact vocabulary answer, or the first vocabulary word
// found in a longer reply.
func (l *LLM) parse(answer string) (string, bool) {
	if label, ok := l.vocab.Match(answer); ok {
		return label, true
	}
	words := strings.FieldsFunc(answer, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if label, ok := l.vocab.Match(w); ok {
			return label, true
		}
	}
	return "", false
}
