package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/labelsift/internal/report"
	"github.com/KaramelBytes/labelsift/internal/utils"
)

var (
	lblSource  string
	lblChart   string
	lblJSON    bool
	lblSamples int
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Summarize the labels present in a dataset",
	Example: `  labelsift labels
  labelsift labels --source ulasan.csv --chart labels.png
  labelsift labels --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context(), c, lblSource)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if lblJSON {
			b, err := utils.PrettyJSON(ds.Counts())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			fmt.Fprint(out, report.Summarize(ds, nil, c.Vocabulary(), lblSamples).Markdown())
		}
		if lblChart != "" {
			counts := ds.Counts()
			if err := utils.WriteFileFunc(lblChart, func(w io.Writer) error { return report.BarChart(w, counts) }); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote chart to %s\n", lblChart)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
	labelsCmd.Flags().StringVarP(&lblSource, "source", "s", "", "dataset path, http(s):// URL or s3://bucket/key (default: config 'source')")
	labelsCmd.Flags().StringVar(&lblChart, "chart", "", "also write a PNG bar chart of label counts")
	labelsCmd.Flags().BoolVar(&lblJSON, "json", false, "print counts as JSON instead of Markdown")
	labelsCmd.Flags().IntVar(&lblSamples, "samples", 3, "number of sample rows in the summary")
}
