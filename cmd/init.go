package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/labelsift/internal/config"
)

var (
	initSource string
	initModel  string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write the effective configuration (defaults plus any LABELSIFT_* overrides)
to ~/.labelsift/config.yaml, or to --config when given, so it can be edited.`,
	Example: `  labelsift init --source hasil_klasifikasi.csv --model model.json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat config: %w", err)
		}
		c := cfg
		if c == nil {
			// an explicit --config that does not exist yet fails to load
			c, err = cfgpkg.Load("")
			if err != nil {
				return err
			}
		}
		if initSource != "" {
			c.Source = initSource
		}
		if initModel != "" {
			c.Model = initModel
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		if err := cfgpkg.Save(c, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written: %s\n", path)
		return nil
	},
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := cfgpkg.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initSource, "source", "", "default dataset source")
	initCmd.Flags().StringVar(&initModel, "model", "", "default classifier")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
}
