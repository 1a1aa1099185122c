package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/storage"
)

func replCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl [path]",
		Short: "Explore an OpenSpec directory interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := global.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), pathArg(args), logger)
			if err != nil {
				return err
			}
			return newREPL(store, cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}

// replCommands lists the REPL commands with their help text.
var replCommands = map[string]string{
	"help":    "Show this help",
	"stats":   "Show spec, change and task counts",
	"specs":   "List capability specs",
	"changes": "List active and archived changes",
	"spec":    "spec <name> - Show a spec and its design",
	"change":  "change <name> - Show a change",
	"search":  "search <query> - Search all documents",
	"reload":  "Re-read the directory",
	"quit":    "Exit the REPL",
}

// REPL is an interactive explorer over a loaded store.
type REPL struct {
	store *storage.Store
	out   io.Writer
	liner *liner.State
}

func newREPL(store *storage.Store, out io.Writer) *REPL {
	return &REPL{store: store, out: out}
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".openspec_viewer_history")
}

// Run reads commands until EOF, Ctrl+C or quit.
func (r *REPL) Run(ctx context.Context) error {
	// Set up liner for readline-style input
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	// Load history
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	if data, ok := r.store.Current(); ok {
		fmt.Fprintf(r.out, "%s - %s\n", data.Project.Name, r.store.Root())
	}
	fmt.Fprintln(r.out, "Type 'help' for available commands.")
	fmt.Fprintln(r.out)

	for {
		line, err := r.liner.Prompt("openspec> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		if !r.Execute(ctx, line) {
			break
		}
	}

	// Save history
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// Execute runs one command line. It returns false when the REPL should exit.
func (r *REPL) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch cmd {
	case "quit", "exit":
		return false

	case "help":
		names := make([]string, 0, len(replCommands))
		for name := range replCommands {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(r.out, "Available commands:")
		for _, name := range names {
			fmt.Fprintf(r.out, "  %-8s %s\n", name, replCommands[name])
		}

	case "stats":
		data, ok := r.store.Current()
		if !ok {
			fmt.Fprintln(r.out, "Data not loaded")
			return true
		}
		s := data.Stats
		fmt.Fprintf(r.out, "Specs: %d\nActive changes: %d\nArchived changes: %d\nTasks: %d/%d (%d%%)\n",
			s.TotalSpecs, s.ActiveChanges, s.ArchivedChanges,
			s.OverallTaskProgress.Done, s.OverallTaskProgress.Total, s.OverallTaskProgress.Percentage)

	case "specs":
		data, ok := r.store.Current()
		if !ok {
			fmt.Fprintln(r.out, "Data not loaded")
			return true
		}
		for _, s := range data.Specs {
			fmt.Fprintf(r.out, "  %s\n", s.Name)
		}

	case "changes":
		data, ok := r.store.Current()
		if !ok {
			fmt.Fprintln(r.out, "Data not loaded")
			return true
		}
		fmt.Fprintln(r.out, "Active:")
		for _, c := range data.Changes.Active {
			fmt.Fprintf(r.out, "  %-30s %d/%d tasks\n", c.Name, c.TaskProgress.Done, c.TaskProgress.Total)
		}
		fmt.Fprintln(r.out, "Archived:")
		for _, c := range data.Changes.Archived {
			fmt.Fprintf(r.out, "  %s\n", c.Name)
		}

	case "spec":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: spec <name>")
			return true
		}
		res := r.store.LoadSpec(arg)
		if !res.OK() {
			fmt.Fprintf(r.out, "Error: %v\n", res.Err())
			return true
		}
		fmt.Fprintln(r.out, res.Data.SpecContent)
		if design, ok := res.Data.DesignContent.Get(); ok {
			fmt.Fprintf(r.out, "--- design.md ---\n%s\n", design)
		}

	case "change":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: change <name>")
			return true
		}
		res := r.store.LoadChange(arg)
		if !res.OK() {
			fmt.Fprintf(r.out, "Error: %v\n", res.Err())
			return true
		}
		c := res.Data
		fmt.Fprintf(r.out, "%s (%d/%d tasks, %d spec deltas)\n", c.Name, c.TaskProgress.Done, c.TaskProgress.Total, len(c.SpecDeltas))
		if proposal, ok := c.Proposal.Get(); ok {
			fmt.Fprintln(r.out, proposal)
		}
		for _, f := range c.Files {
			fmt.Fprintf(r.out, "  %s\n", f.Path)
		}

	case "search":
		if len([]rune(arg)) < 2 {
			fmt.Fprintln(r.out, "Usage: search <query> (at least 2 characters)")
			return true
		}
		results, err := r.store.Search(arg)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return true
		}
		printResults(r.out, arg, results)

	case "reload":
		res := r.store.Refresh(ctx, nil)
		if !res.OK() {
			fmt.Fprintf(r.out, "Reload failed: %v\n", res.Err())
			return true
		}
		fmt.Fprintf(r.out, "Reloaded (%d warnings)\n", len(res.Warnings))

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", cmd)
		fmt.Fprintln(r.out, "Type 'help' for available commands.")
	}
	return true
}

// completer provides tab completion for commands and entity names.
func (r *REPL) completer(line string) []string {
	var out []string
	cmd, prefix, hasArg := strings.Cut(line, " ")

	if !hasArg {
		for name := range replCommands {
			if strings.HasPrefix(name, strings.ToLower(cmd)) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out
	}

	data, ok := r.store.Current()
	if !ok {
		return nil
	}
	switch cmd {
	case "spec":
		for _, s := range data.Specs {
			if strings.HasPrefix(s.Name, prefix) {
				out = append(out, "spec "+s.Name)
			}
		}
	case "change":
		for _, group := range [][]string{changeNames(data.Changes.Active), changeNames(data.Changes.Archived)} {
			for _, name := range group {
				if strings.HasPrefix(name, prefix) {
					out = append(out, "change "+name)
				}
			}
		}
	}
	return out
}

func changeNames(changes []openspec.Change) []string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Name)
	}
	return names
}
