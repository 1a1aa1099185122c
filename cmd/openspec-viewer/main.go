// Package main provides the openspec-viewer binary entry point.
// The viewer parses an OpenSpec directory and serves it to a browser,
// updating connected clients live as files change.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/c360studio/openspec-viewer/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "openspec-viewer"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func (o *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "Config file path (YAML, JSON or JSONC)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// load builds the logger and configuration. The --log-level flag wins over
// the configured level.
func (o *globalOptions) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(stderr, o.logLevel)

	cfg, err := config.NewLoader(bootstrap).Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if _, err := config.ParseLevel(cfg.Log.Level); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	logger := newLogger(stderr, cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func rootCmd() *cobra.Command {
	var global globalOptions
	var serve serveOptions

	cmd := &cobra.Command{
		Use:   "openspec-viewer [path]",
		Short: "Interactive browser viewer for OpenSpec directories",
		Long: `openspec-viewer parses an OpenSpec directory (project.md, specs/ and
changes/) and serves it to a browser.

It provides:
- A JSON API over the parsed project, specs, changes and stats
- Live updates over WebSocket and server-sent events as files change
- Full-text search, export and an MCP server for editor assistants`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &global, &serve, pathArg(args))
		},
	}

	global.bind(cmd.PersistentFlags())
	serve.bind(cmd.Flags())

	cmd.AddCommand(
		searchCmd(&global),
		exportCmd(&global),
		replCmd(&global),
		mcpCmd(&global),
		configCmd(&global),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// resolveRoot returns the absolute OpenSpec directory for path.
func resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s does not exist", abs)
		}
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
