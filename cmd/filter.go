package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/report"
	"github.com/KaramelBytes/labelsift/internal/utils"
)

var (
	fltSource string
	fltLabels []string
	fltMulti  bool
	fltOutput string
	fltPrint  bool
	fltModel  string
	fltLabel  bool
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter a dataset by label and export the matching rows as CSV",
	Long: `Load a dataset, optionally label it with a classifier, keep the rows whose
label matches the selection (case-insensitive) and write them as CSV.

By default exactly one --label from the configured vocabulary is required.
With --multi any number of labels may be given and rows matching any of them
are kept; no labels selects nothing.`,
	Example: `  labelsift filter --label netral
  labelsift filter --source ulasan.xlsx --label NEGATIF -o negatif.csv
  labelsift filter --multi --label positif --label netral --print
  labelsift filter --source s3://bucket/raw.csv --classify --model ollama:llama3 --label negatif`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if !fltMulti {
			if len(fltLabels) != 1 {
				return fmt.Errorf("exactly one --label is required (choose one of: %s); use --multi to select several", strings.Join(c.Vocabulary(), ", "))
			}
			if err := c.Vocabulary().Check(fltLabels[0]); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		ds, err := loadDataset(ctx, c, fltSource)
		if err != nil {
			return err
		}
		if fltLabel || cmd.Flags().Changed("model") {
			clf, ref, err := loadClassifier(ctx, c, fltModel)
			if err != nil {
				return err
			}
			ds, err = classify.Apply(ctx, clf, ds)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Labeled %d rows with %s\n", ds.Len(), ref)
		}

		var view *dataset.Dataset
		if fltMulti {
			view = ds.FilterAny(fltLabels)
		} else {
			view = ds.Filter(fltLabels[0])
		}
		sum := report.Summarize(ds, view, nil, 0)

		if fltPrint && fltOutput == "" {
			fmt.Fprintln(os.Stderr, sum.CountLine())
			return view.WriteCSV(cmd.OutOrStdout())
		}
		out := fltOutput
		if out == "" {
			// user-chosen sources prefix the file name
			prefix := ""
			if fltSource != "" {
				prefix = ds.Name
			}
			out = dataset.ExportName(prefix, view.Selection)
		}
		if err := utils.WriteFileFunc(out, view.WriteCSV); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sum.CountLine())
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s\n", view.Len(), out)
		if fltPrint {
			return view.WriteCSV(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().StringVarP(&fltSource, "source", "s", "", "dataset path, http(s):// URL or s3://bucket/key (default: config 'source')")
	filterCmd.Flags().StringArrayVarP(&fltLabels, "label", "l", nil, "label to keep (repeatable with --multi)")
	filterCmd.Flags().BoolVar(&fltMulti, "multi", false, "select any number of labels")
	filterCmd.Flags().StringVarP(&fltOutput, "output", "o", "", "output CSV path (default: derived from the selection)")
	filterCmd.Flags().BoolVar(&fltPrint, "print", false, "print the matching rows as CSV to stdout")
	filterCmd.Flags().BoolVar(&fltLabel, "classify", false, "label the rows with the configured model before filtering")
	filterCmd.Flags().StringVar(&fltModel, "model", "", "classifier: model.json, ollama:<model> or openrouter:<model> (implies --classify)")
}
