package openspec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/openspec-viewer/source/parser"
)

func changeFixture(t *testing.T) string {
	t.Helper()
	return newRoot(t, "demo", map[string]string{
		"changes/add-login/proposal.md":                    "# Add login\n\nWhy we need login.\n",
		"changes/add-login/tasks.md":                       "- [x] schema\n- [ ] handler\n  - [x] route\n",
		"changes/add-login/design.md":                      "# Design\n",
		"changes/add-login/specs/auth/spec.md":             "## ADDED Requirements\n### Requirement: Login\nBody text",
		"changes/add-login/mockups/login.html":             "<h1>Login</h1>",
		"changes/add-login/notes.md":                       "notes",
		"changes/bare/README.txt":                          "nothing parseable",
		"changes/archive/2024-01-05-old-thing/proposal.md": "# Old\n",
		"changes/archive/2024-03-10-newer/proposal.md":     "# Newer\n",
		"changes/archive/undated/proposal.md":              "# Undated\n",
	})
}

func TestLoadChanges(t *testing.T) {
	root := changeFixture(t)

	res := LoadChanges(root)

	require.True(t, res.OK())
	assert.Empty(t, res.Errors)

	active := res.Data.Active
	require.Len(t, active, 2)
	assert.Equal(t, "add-login", active[0].Name)
	assert.Equal(t, "bare", active[1].Name)

	archived := res.Data.Archived
	require.Len(t, archived, 3)
	names := []string{archived[0].Name, archived[1].Name, archived[2].Name}
	assert.Equal(t, "2024-03-10-newer", names[0], "newest dated change first")
	assert.Contains(t, names, "undated")

	for _, c := range archived {
		assert.True(t, c.IsArchived)
	}
	date, ok := archived[0].ArchivedDate.Get()
	require.True(t, ok)
	assert.Equal(t, "2024-03-10", date)
}

func TestLoadChanges_SameArchiveDateSortsByName(t *testing.T) {
	root := newRoot(t, "demo", map[string]string{
		"changes/archive/2024-01-01-Zeta/proposal.md":  "# Zeta\n",
		"changes/archive/2024-01-01-alpha/proposal.md": "# Alpha\n",
		"changes/archive/2024-02-01-later/proposal.md": "# Later\n",
	})

	res := LoadChanges(root)

	require.True(t, res.OK())
	archived := res.Data.Archived
	require.Len(t, archived, 3)
	assert.Equal(t,
		[]string{"2024-02-01-later", "2024-01-01-alpha", "2024-01-01-Zeta"},
		[]string{archived[0].Name, archived[1].Name, archived[2].Name})
}

func TestLoadChanges_MissingDirectory(t *testing.T) {
	res := LoadChanges(newRoot(t, "demo", nil))

	require.True(t, res.OK())
	assert.Empty(t, res.Data.Active)
	assert.Empty(t, res.Data.Archived)
	assert.Equal(t, []string{"changes/ directory not found"}, res.Warnings)
}

func TestLoadChange(t *testing.T) {
	root := changeFixture(t)
	dir := filepath.Join(root, "changes", "add-login")

	res := LoadChange("add-login", dir, false)

	require.True(t, res.OK())
	c := res.Data
	assert.Equal(t, dir, c.Path)
	assert.False(t, c.IsArchived)
	assert.False(t, c.ArchivedDate.Present())

	proposal, ok := c.Proposal.Get()
	require.True(t, ok)
	assert.Contains(t, proposal, "Why we need login.")
	assert.True(t, c.Design.Present())
	assert.True(t, c.TasksRaw.Present())

	require.Len(t, c.Tasks, 2)
	require.Len(t, c.Tasks[1].Subtasks, 1)
	assert.Equal(t, parser.TaskProgress{Done: 2, Total: 3, Percentage: 67}, c.TaskProgress)

	require.Len(t, c.SpecDeltas, 1)
	delta := c.SpecDeltas[0]
	assert.Equal(t, "auth", delta.Capability)
	require.Len(t, delta.Operations, 1)
	assert.Equal(t, parser.DeltaAdded, delta.Operations[0].Type)
	assert.Equal(t, "Login", delta.Operations[0].Name)

	// specs/ is reserved for deltas and never listed as a change file.
	for _, f := range c.Files {
		assert.NotContains(t, f.Path, "specs/")
	}
	assert.Len(t, c.Files, 5)
}

func TestLoadChange_WithoutDocuments(t *testing.T) {
	root := changeFixture(t)

	res := LoadChange("bare", filepath.Join(root, "changes", "bare"), false)

	require.True(t, res.OK())
	assert.Empty(t, res.Warnings, "absent optional documents are not warnings")
	assert.False(t, res.Data.Proposal.Present())
	assert.False(t, res.Data.Design.Present())
	assert.False(t, res.Data.TasksRaw.Present())
	assert.NotNil(t, res.Data.Tasks)
	assert.Empty(t, res.Data.Tasks)
	assert.Equal(t, parser.TaskProgress{}, res.Data.TaskProgress)
	assert.Empty(t, res.Data.SpecDeltas)
	assert.Empty(t, res.Data.FileGroups)
}

func TestLoadChange_MissingDirectory(t *testing.T) {
	res := LoadChange("ghost", filepath.Join(t.TempDir(), "ghost"), false)

	assert.False(t, res.OK())
	assert.Equal(t, []string{"Change ghost not found"}, res.Errors)
	assert.ErrorIs(t, res.Err(), ErrNotFound)
}

func TestLoadChangeByName(t *testing.T) {
	root := changeFixture(t)

	t.Run("active", func(t *testing.T) {
		res := LoadChangeByName(root, "add-login")
		require.True(t, res.OK())
		assert.False(t, res.Data.IsArchived)
	})

	t.Run("archived by substring", func(t *testing.T) {
		res := LoadChangeByName(root, "old-thing")
		require.True(t, res.OK())
		assert.Equal(t, "2024-01-05-old-thing", res.Data.Name)
		assert.True(t, res.Data.IsArchived)
	})

	t.Run("not found", func(t *testing.T) {
		res := LoadChangeByName(root, "missing")
		assert.False(t, res.OK())
		assert.Equal(t, []string{"Change missing not found"}, res.Errors)
		assert.ErrorIs(t, res.Err(), ErrNotFound)
	})

	t.Run("archive directory is not a change", func(t *testing.T) {
		res := LoadChangeByName(root, "archive")
		assert.False(t, res.OK())
	})
}

func TestParseArchivedDate(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		present bool
	}{
		{"2024-01-15-add-auth", "2024-01-15", true},
		{"2024-01-15", "", false},
		{"add-auth", "", false},
		{"24-01-15-short-year", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseArchivedDate(tt.name).Get()
			assert.Equal(t, tt.present, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArchivedBefore(t *testing.T) {
	dated := func(name, date string) Change {
		return Change{Name: name, ArchivedDate: Some(date)}
	}
	undated := func(name string) Change {
		return Change{Name: name, ArchivedDate: None[string]()}
	}

	assert.True(t, archivedBefore(dated("a", "2024-02-01"), dated("b", "2024-01-01")))
	assert.False(t, archivedBefore(dated("a", "2024-01-01"), dated("b", "2024-02-01")))
	assert.True(t, archivedBefore(undated("alpha"), dated("beta", "2024-01-01")))
	assert.True(t, archivedBefore(undated("alpha"), undated("beta")))

	// Same date: names decide, ignoring case.
	assert.True(t, archivedBefore(dated("2024-01-01-alpha", "2024-01-01"), dated("2024-01-01-Zeta", "2024-01-01")))
	assert.False(t, archivedBefore(dated("2024-01-01-Zeta", "2024-01-01"), dated("2024-01-01-alpha", "2024-01-01")))
}
