package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	openspecwatcher "github.com/c360studio/openspec-viewer/processor/openspec-watcher"
	viewerapi "github.com/c360studio/openspec-viewer/processor/viewer-api"
	viewermcp "github.com/c360studio/openspec-viewer/processor/viewer-mcp"
	"github.com/c360studio/openspec-viewer/storage"
)

func mcpCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp [path]",
		Short: "Serve the OpenSpec model to MCP hosts over stdio",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing the
OpenSpec directory as read-only tools. Logs go to stderr.

Example host configuration:

  {
    "mcpServers": {
      "openspec": {
        "command": "openspec-viewer",
        "args": ["mcp", "/path/to/openspec"]
      }
    }
  }`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			root, err := resolveRoot(pathArg(args))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Keep the snapshot current while the host is connected.
			store := storage.NewStore(root, logger)
			var opts []viewerapi.ServiceOption
			if cfg.Watch.Enabled {
				watcher, err := openspecwatcher.NewWatcher(cfg.Watch, root, logger)
				if err != nil {
					return fmt.Errorf("create watcher: %w", err)
				}
				opts = append(opts, viewerapi.WithWatcher(watcher))
			}
			svc := viewerapi.NewService(store, logger, opts...)
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer func() { _ = svc.Stop() }()

			return server.ServeStdio(viewermcp.NewServer(store, Version))
		},
	}
}
