package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/utils"
)

var (
	splOutDir    string
	splVocabOnly bool
	splQuiet     bool
)

var splitCmd = &cobra.Command{
	Use:   "split <files...>",
	Short: "Export one CSV per label for each of several datasets",
	Long: `Load each file (globs allowed), and for every label found write the
matching rows to <out-dir>/<stem>_label_<label>.csv. Files that share a stem
get a __2, __3, ... suffix instead of overwriting each other.`,
	Example: `  labelsift split data/*.csv --out-dir exports
  labelsift split ulasan.xlsx --vocab-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(splOutDir, 0o755); err != nil {
			return fmt.Errorf("create out dir: %w", err)
		}

		out := cmd.OutOrStdout()
		vocab := c.Vocabulary()
		written := map[string]struct{}{}
		outputs := map[string]struct{}{}
		total := len(files)
		for i, path := range files {
			if !splQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			ds, err := loadDataset(cmd.Context(), c, path)
			if err != nil {
				return err
			}
			stem := uniqueStem(ds.Name, written)
			for _, lc := range ds.Counts() {
				if splVocabOnly && !vocab.Contains(lc.Label) {
					if !splQuiet {
						fmt.Fprintf(out, "⚠ Skipping label %q (not in vocabulary)\n", lc.Label)
					}
					continue
				}
				view := ds.Filter(lc.Label)
				name := filepath.Join(splOutDir, uniqueFile(dataset.ExportName(stem+".csv", view.Selection), outputs))
				if err := utils.WriteFileFunc(name, view.WriteCSV); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
				if !splQuiet {
					fmt.Fprintf(out, "✓ %s: %d rows\n", filepath.Base(name), view.Len())
				}
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal remote references and drops
// duplicates. The result is sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if strings.Contains(arg, "://") {
				matches = []string{arg}
			} else if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniqueStem returns the file stem of name, suffixed when already used.
func uniqueStem(name string, used map[string]struct{}) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	cand := stem
	for idx := 2; ; idx++ {
		if _, ok := used[cand]; !ok {
			used[cand] = struct{}{}
			return cand
		}
		cand = fmt.Sprintf("%s__%d", stem, idx)
	}
}

// uniqueFile suffixes name before its extension when an earlier label of
// the same run mapped to the same file.
func uniqueFile(name string, used map[string]struct{}) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	cand := name
	for idx := 2; ; idx++ {
		if _, ok := used[cand]; !ok {
			used[cand] = struct{}{}
			return cand
		}
		cand = fmt.Sprintf("%s__%d%s", base, idx, ext)
	}
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVarP(&splOutDir, "out-dir", "o", ".", "directory for the exported files")
	splitCmd.Flags().BoolVar(&splVocabOnly, "vocab-only", false, "only export labels in the configured vocabulary")
	splitCmd.Flags().BoolVar(&splQuiet, "quiet", false, "suppress progress and non-essential output")
}
