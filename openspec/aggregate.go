package openspec

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/openspec-viewer/source/parser"
)

// Load reads the whole OpenSpec tree rooted at root. The project, specs and
// changes loaders run concurrently; their diagnostics are concatenated in
// that order. A missing or non-directory root is the only fatal condition.
func Load(ctx context.Context, root string) Result[Data] {
	res := newResult[Data]()

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.fail(newKindError(ErrNotFound, "OpenSpec directory not found: %s", root))
		} else {
			res.fail(fmt.Errorf("failed to stat OpenSpec directory %s: %w", root, err))
		}
		return res
	}
	if !info.IsDir() {
		res.fail(newKindError(ErrNotDirectory, "%s is not a directory", root))
		return res
	}

	var (
		project Result[Project]
		specs   Result[[]Spec]
		changes Result[Changes]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		project = LoadProject(root)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		specs = LoadSpecs(root)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		changes = LoadChanges(root)
		return nil
	})
	if err := g.Wait(); err != nil {
		res.fail(fmt.Errorf("load cancelled: %w", err))
		return res
	}

	absorb(&res, project)
	absorb(&res, specs)
	absorb(&res, changes)

	if project.Data == nil || specs.Data == nil || changes.Data == nil {
		res.fail(errors.New("failed to load OpenSpec data"))
		return res
	}

	res.Data = &Data{
		Project: *project.Data,
		Specs:   *specs.Data,
		Changes: *changes.Data,
		Stats:   CalculateStats(*specs.Data, *changes.Data),
	}
	return res
}

// CalculateStats summarizes counts and the task progress of active changes.
// Archived changes never contribute to OverallTaskProgress.
func CalculateStats(specs []Spec, changes Changes) Stats {
	var progress parser.TaskProgress
	for _, c := range changes.Active {
		progress = progress.Add(c.TaskProgress)
	}

	return Stats{
		TotalSpecs:          len(specs),
		ActiveChanges:       len(changes.Active),
		ArchivedChanges:     len(changes.Archived),
		OverallTaskProgress: progress,
	}
}
