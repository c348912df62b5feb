package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/labelsift/internal/config"
	"github.com/KaramelBytes/labelsift/internal/server"
	"github.com/KaramelBytes/labelsift/internal/source"
)

var (
	srvAddr    string
	srvLogJSON bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filter page and JSON API",
	Example: `  labelsift serve
  labelsift serve --addr 127.0.0.1:9000 --log-json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		addr := srvAddr
		if addr == "" {
			addr = c.ListenAddr
		}
		logger, err := newLogger(c, srvLogJSON)
		if err != nil {
			return err
		}

		srv := server.New(server.Options{
			Source:         c.Source,
			Loader:         c.Loader(),
			Opener:         source.NewOpener(c.SourceOptions()),
			Vocabulary:     c.Vocabulary(),
			Model:          c.Model,
			Runtime:        c.RuntimeConfig(),
			MaxUploadBytes: c.MaxSourceBytes,
			Logger:         &logger,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on http://%s (Ctrl+C to stop)\n", displayAddr(addr))
		return srv.ListenAndServe(ctx, addr)
	},
}

func newLogger(c *cfgpkg.Global, asJSON bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.LogLevel != "" {
		l, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
		level = l
	}
	if debug {
		level = zerolog.DebugLevel
	}
	var logger zerolog.Logger
	if asJSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "labelsift").Logger(), nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default: config 'listen_addr')")
	serveCmd.Flags().BoolVar(&srvLogJSON, "log-json", false, "log as JSON lines instead of console text")
}
