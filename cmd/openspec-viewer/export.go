package main

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/c360studio/openspec-viewer/export"
	"github.com/c360studio/openspec-viewer/openspec"
)

func exportCmd(global *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export the parsed OpenSpec model as JSON, YAML or markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := global.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// The format follows the output extension unless set explicitly.
			if !cmd.Flags().Changed("format") && output != "" && filepath.Ext(output) != "" {
				format = filepath.Ext(output)[1:]
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			exporter, err := export.NewExporter(f)
			if err != nil {
				return err
			}

			root, err := resolveRoot(pathArg(args))
			if err != nil {
				return err
			}
			doc, err := exporter.NewDocument(root, openspec.Load(cmd.Context(), root))
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return exporter.Export(cmd.OutOrStdout(), doc)
			}

			var buf bytes.Buffer
			if err := exporter.Export(&buf, doc); err != nil {
				return err
			}
			if err := atomic.WriteFile(output, &buf); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", f, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "Output format (json, yaml, markdown)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
