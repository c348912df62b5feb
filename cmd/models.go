package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/labelsift/internal/ai"
	"github.com/KaramelBytes/labelsift/internal/utils"
)

var (
	mdlFilter string
	mdlJSON   bool
)

var modelsCmd = &cobra.Command{
	Use:   "models <provider>",
	Short: "List models available from an LLM provider",
	Long: `List the models a provider offers, for use as --model <provider>:<model>.
Providers: ollama (local models from 'ollama pull'), openrouter (needs api_key).`,
	Example: `  labelsift models ollama
  labelsift models openrouter --filter mistral`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: ai.Providers(),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		provider := strings.ToLower(args[0])
		rt, err := ai.NewRuntime(provider, c.RuntimeConfig())
		if err != nil {
			return err
		}
		lister, ok := rt.(ai.ModelLister)
		if !ok {
			return fmt.Errorf("provider %s cannot list models", provider)
		}
		names, err := lister.Models(cmd.Context())
		if err != nil {
			return ai.Hint(err, provider, "")
		}
		sort.Strings(names)
		if mdlFilter != "" {
			kept := names[:0]
			for _, n := range names {
				if strings.Contains(strings.ToLower(n), strings.ToLower(mdlFilter)) {
					kept = append(kept, n)
				}
			}
			names = kept
		}

		out := cmd.OutOrStdout()
		if mdlJSON {
			b, err := utils.PrettyJSON(names)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(names) == 0 {
			fmt.Fprintf(out, "No models found for %s\n", provider)
			return nil
		}
		for _, n := range names {
			fmt.Fprintf(out, "%s:%s\n", provider, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&mdlFilter, "filter", "", "only show models whose name contains this text")
	modelsCmd.Flags().BoolVar(&mdlJSON, "json", false, "print names as a JSON array")
}
