package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"
)

// Snapshot is the JSON form of a trained multinomial Naive Bayes model.
type Snapshot struct {
	ClassDocCounts  map[string]int            `json:"class_doc_counts"`
	ClassWordCounts map[string]map[string]int `json:"class_word_counts"`
	ClassTotalWords map[string]int            `json:"class_total_words"`
	Vocabulary      []string                  `json:"vocabulary"`
	TotalDocs       int                       `json:"total_docs"`
}

// NaiveBayes predicts with a frozen Snapshot. It is safe for concurrent use.
type NaiveBayes struct {
	classes   []string
	docCounts map[string]int
	words     map[string]map[string]int
	total     map[string]int
	vocabSize float64
	totalDocs int
}

// LoadSnapshotFile reads a Snapshot from path.
func LoadSnapshotFile(path string) (*NaiveBayes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return FromSnapshot(s)
}

// FromSnapshot validates s and builds a predictor from it.
func FromSnapshot(s Snapshot) (*NaiveBayes, error) {
	if s.TotalDocs <= 0 {
		return nil, errors.New("model has no training documents")
	}
	nb := &NaiveBayes{
		docCounts: make(map[string]int, len(s.ClassDocCounts)),
		words:     s.ClassWordCounts,
		total:     s.ClassTotalWords,
		vocabSize: float64(len(s.Vocabulary)),
		totalDocs: s.TotalDocs,
	}
	for class, n := range s.ClassDocCounts {
		if n > 0 {
			nb.docCounts[class] = n
			nb.classes = append(nb.classes, class)
		}
	}
	if len(nb.classes) == 0 {
		return nil, errors.New("model has no classes")
	}
	// fixed order keeps ties deterministic
	sort.Strings(nb.classes)
	return nb, nil
}

// Classes returns the labels the model can predict.
func (nb *NaiveBayes) Classes() []string { return append([]string(nil), nb.classes...) }

// Predict implements Classifier.
func (nb *NaiveBayes) Predict(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out[i], _ = nb.Score(t)
	}
	return out, nil
}

// Score returns the most probable label for text and the normalized
// posterior of every class.
func (nb *NaiveBayes) Score(text string) (string, map[string]float64) {
	tokens := tokenize(text)
	scores := make(map[string]float64, len(nb.classes))
	best, bestScore := "", math.Inf(-1)
	for _, class := range nb.classes {
		logProb := math.Log(float64(nb.docCounts[class]) / float64(nb.totalDocs))
		totalWords := float64(nb.total[class])
		for _, tok := range tokens {
			count := float64(nb.words[class][tok])
			logProb += math.Log((count + 1) / (totalWords + nb.vocabSize))
		}
		scores[class] = logProb
		if logProb > bestScore {
			best, bestScore = class, logProb
		}
	}
	return best, normalizeScores(scores, bestScore)
}

func normalizeScores(scores map[string]float64, best float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	var sum float64
	for class, lp := range scores {
		v := math.Exp(lp - best)
		out[class] = v
		sum += v
	}
	if sum == 0 {
		return out
	}
	for class := range out {
		out[class] /= sum
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
