package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/labelsift/internal/classify"
)

var (
	prdText  string
	prdModel string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the label of a single text",
	Example: `  labelsift predict --text "pelayanannya cepat sekali"
  labelsift predict --model ollama:llama3 --text "biasa saja"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		clf, _, err := loadClassifier(cmd.Context(), c, prdModel)
		if err != nil {
			return err
		}
		label, err := classify.One(cmd.Context(), clf, prdText)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), label)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVarP(&prdText, "text", "t", "", "text to classify")
	predictCmd.Flags().StringVar(&prdModel, "model", "", "classifier (default: config 'model')")
	_ = predictCmd.MarkFlagRequired("text")
}
