// Package openspec loads an OpenSpec documentation tree into a typed,
// read-only model.
//
// # Layout
//
// An OpenSpec root contains:
//
//	project.md                  project overview
//	AGENTS.md                   optional agent instructions
//	specs/<capability>/spec.md  source-of-truth capability specs
//	specs/<capability>/design.md
//	changes/<name>/             active change proposals
//	changes/archive/<date>-<name>/
//
// Each change directory may carry proposal.md, tasks.md, design.md, a specs/
// tree of delta documents and any number of supporting markdown or HTML
// files in sub-folders.
//
// # Failure Policy
//
// Loaders never abort on a single bad file. Every loader returns a [Result]
// whose Errors and Warnings describe what could not be read; the data that
// could be read is still returned. Only a missing OpenSpec root is fatal to
// [Load].
package openspec
