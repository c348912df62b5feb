package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/labelsift/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set labelsift configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source: %s\n", cfg.Source)
		fmt.Fprintf(out, "text_candidates: %s\n", strings.Join(cfg.Candidates().Text, ", "))
		fmt.Fprintf(out, "label_candidates: %s\n", strings.Join(cfg.Candidates().Label, ", "))
		cols := cfg.Columns()
		fmt.Fprintf(out, "text_column: %s\n", cols.Text)
		fmt.Fprintf(out, "label_column: %s\n", cols.Label)
		fmt.Fprintf(out, "label_vocabulary: %s\n", strings.Join(cfg.Vocabulary(), ", "))
		if cfg.Delimiter != "" {
			fmt.Fprintf(out, "delimiter: %q\n", cfg.Delimiter)
		}
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		if cfg.S3Region != "" {
			fmt.Fprintf(out, "s3_region: %s\n", cfg.S3Region)
		}
		if cfg.S3Endpoint != "" {
			fmt.Fprintf(out, "s3_endpoint: %s\n", cfg.S3Endpoint)
		}
		fmt.Fprintf(out, "max_source_bytes: %d\n", cfg.MaxSourceBytes)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. List keys (text_candidates,
label_candidates, label_vocabulary) take comma-separated values.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
