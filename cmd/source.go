package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/labelsift/internal/classify"
	cfgpkg "github.com/KaramelBytes/labelsift/internal/config"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/source"
)

// loadDataset opens ref (or the configured source when ref is empty) and
// normalizes it.
func loadDataset(ctx context.Context, c *cfgpkg.Global, ref string) (*dataset.Dataset, error) {
	if strings.TrimSpace(ref) == "" {
		ref = c.Source
	}
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("no source given (use --source or set source in the config)")
	}
	src, err := source.NewOpener(c.SourceOptions()).Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	if debug {
		fmt.Fprintf(os.Stderr, "[debug] source %s: %d bytes\n", src.Name, len(src.Data))
	}
	return c.Loader().LoadBytes(src.Name, src.Data)
}

// loadClassifier loads ref, falling back to the configured model.
func loadClassifier(ctx context.Context, c *cfgpkg.Global, ref string) (classify.Classifier, string, error) {
	if strings.TrimSpace(ref) == "" {
		ref = c.Model
	}
	if strings.TrimSpace(ref) == "" {
		return nil, "", fmt.Errorf("no model given (use --model or set model in the config)")
	}
	clf, err := classify.Load(ctx, ref, classify.Options{Runtime: c.RuntimeConfig(), Vocabulary: c.Vocabulary()})
	if err != nil {
		return nil, ref, err
	}
	return clf, ref, nil
}
