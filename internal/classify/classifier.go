// Package classify loads pre-trained sentiment classifiers and applies them
// to datasets. Loading is separate from prediction so that a missing or
// broken model is reported before any row is labeled.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/labelsift/internal/ai"
	"github.com/KaramelBytes/labelsift/internal/dataset"
)

// Classifier predicts one label per input text, in order.
type Classifier interface {
	Predict(ctx context.Context, texts []string) ([]string, error)
}

// Classes returns the labels clf can predict, or nil when it does not say.
func Classes(clf Classifier) []string {
	if c, ok := clf.(interface{ Classes() []string }); ok {
		return c.Classes()
	}
	return nil
}

// ModelLoadError reports a model that could not be made ready.
type ModelLoadError struct {
	Ref string
	Err error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("cannot load model %q: %v", e.Ref, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Options configures Load.
type Options struct {
	// Runtime is used for LLM-backed references.
	Runtime ai.RuntimeConfig
	// Vocabulary constrains LLM answers. Defaults to dataset.DefaultVocabulary.
	Vocabulary dataset.Vocabulary
}

// Load resolves ref into a ready Classifier. Accepted forms:
//
//	path/to/model.json   Naive Bayes snapshot
//	ollama:<model>       local Ollama model
//	openrouter:<model>   OpenRouter model
//
// Every failure is a *ModelLoadError.
func Load(ctx context.Context, ref string, opts Options) (Classifier, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &ModelLoadError{Ref: ref, Err: errors.New("no model configured")}
	}
	if provider, model, ok := strings.Cut(ref, ":"); ok && isProvider(provider) {
		clf, err := newLLM(ctx, strings.ToLower(provider), model, opts)
		if err != nil {
			return nil, &ModelLoadError{Ref: ref, Err: err}
		}
		return clf, nil
	}
	if strings.EqualFold(pathExt(ref), ".json") {
		nb, err := LoadSnapshotFile(ref)
		if err != nil {
			return nil, &ModelLoadError{Ref: ref, Err: err}
		}
		return nb, nil
	}
	return nil, &ModelLoadError{Ref: ref, Err: fmt.Errorf("unrecognized model reference (want *.json, %s:<model> or %s:<model>)", ai.ProviderOllama, ai.ProviderOpenRouter)}
}

func isProvider(s string) bool {
	for _, p := range ai.Providers() {
		if strings.EqualFold(s, p) {
			return true
		}
	}
	return false
}

func pathExt(ref string) string {
	i := strings.LastIndexByte(ref, '.')
	if i < 0 || strings.ContainsAny(ref[i:], `/\`) {
		return ""
	}
	return ref[i:]
}

// Apply labels every row of ds and returns a new Dataset whose label column
// holds the predictions.
func Apply(ctx context.Context, clf Classifier, ds *dataset.Dataset) (*dataset.Dataset, error) {
	texts := ds.Comments()
	labels, err := clf.Predict(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(labels) != len(texts) {
		return nil, fmt.Errorf("predict: classifier returned %d labels for %d rows", len(labels), len(texts))
	}
	return ds.WithSentiments(labels), nil
}

// One predicts the label of a single text.
func One(ctx context.Context, clf Classifier, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is empty")
	}
	labels, err := clf.Predict(ctx, []string{text})
	if err != nil {
		return "", err
	}
	if len(labels) != 1 {
		return "", fmt.Errorf("classifier returned %d labels for 1 text", len(labels))
	}
	return labels[0], nil
}
