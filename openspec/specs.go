package openspec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Well-known names inside the specs tree.
const (
	SpecsDir   = "specs"
	SpecFile   = "spec.md"
	DesignFile = "design.md"
)

// LoadSpecs loads every capability under <root>/specs, sorted by name.
// A missing specs/ directory is a warning and yields an empty list.
func LoadSpecs(root string) Result[[]Spec] {
	res := newResult[[]Spec]()
	specs := []Spec{}
	res.Data = &specs

	dir := filepath.Join(root, SpecsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.warnf("%s/ directory not found", SpecsDir)
		} else {
			res.errorf("Failed to read %s/ directory: %v", SpecsDir, err)
		}
		return res
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		spec := LoadCapability(entry.Name(), filepath.Join(dir, entry.Name()))
		absorb(&res, spec)
		if spec.Data != nil {
			specs = append(specs, *spec.Data)
		}
	}

	sort.Slice(specs, func(i, j int) bool { return compareNames(specs[i].Name, specs[j].Name) < 0 })
	res.Data = &specs
	return res
}

// LoadCapability loads spec.md and design.md from one capability directory.
// A missing spec.md is a warning and leaves SpecContent empty.
func LoadCapability(name, dir string) Result[Spec] {
	res := newResult[Spec]()
	spec := Spec{Name: name, Path: dir}

	content, err := os.ReadFile(filepath.Join(dir, SpecFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.warnf("%s: %s not found", name, SpecFile)
	case err != nil:
		res.warnf("%s: failed to read %s: %v", name, SpecFile, err)
	default:
		spec.SpecContent = string(content)
	}

	design, err := os.ReadFile(filepath.Join(dir, DesignFile))
	switch {
	case err == nil:
		spec.DesignContent = Some(string(design))
	case !errors.Is(err, fs.ErrNotExist):
		res.warnf("%s: failed to read %s: %v", name, DesignFile, err)
	}

	res.Data = &spec
	return res
}

// LoadSpec loads a single capability by name.
func LoadSpec(root, name string) Result[Spec] {
	if err := validateName(name); err != nil {
		res := newResult[Spec]()
		res.fail(err)
		return res
	}

	dir := filepath.Join(root, SpecsDir, name)
	info, err := os.Stat(dir)
	if err != nil {
		res := newResult[Spec]()
		if errors.Is(err, fs.ErrNotExist) {
			res.fail(newKindError(ErrNotFound, "Spec %s not found", name))
		} else {
			res.fail(fmt.Errorf("failed to stat spec %s: %w", name, err))
		}
		return res
	}
	if !info.IsDir() {
		res := newResult[Spec]()
		res.fail(newKindError(ErrNotDirectory, "%s is not a directory", name))
		return res
	}

	return LoadCapability(name, dir)
}

// validateName rejects names that could resolve outside their parent directory.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name ||
		strings.ContainsAny(name, `/\`) {
		return newKindError(ErrInvalidPath, "invalid name %q", name)
	}
	return nil
}
