package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTasks_Flat(t *testing.T) {
	content := `# Implementation Tasks

## Backend

- [ ] Add refresh_token field to User model
- [x] Implement token refresh endpoint
- [X] Add token expiry validation

Some prose between sections.

## Frontend

- [ ] Create refresh token logic
`

	list := ParseTasks(content)

	require.Len(t, list.Tasks, 4)
	assert.Equal(t, "Add refresh_token field to User model", list.Tasks[0].Text)
	assert.False(t, list.Tasks[0].Completed)
	assert.Equal(t, 5, list.Tasks[0].Line)
	assert.True(t, list.Tasks[1].Completed)
	assert.True(t, list.Tasks[2].Completed, "uppercase X counts as done")
	assert.Equal(t, 13, list.Tasks[3].Line)

	assert.Equal(t, TaskProgress{Done: 2, Total: 4, Percentage: 50}, list.Progress)
}

func TestParseTasks_Empty(t *testing.T) {
	for _, content := range []string{"", "   \n\t\n", "# Tasks\n\nnothing here\n"} {
		list := ParseTasks(content)
		assert.NotNil(t, list.Tasks)
		assert.Empty(t, list.Tasks)
		assert.Equal(t, TaskProgress{}, list.Progress)
	}
}

func TestParseTasks_Nesting(t *testing.T) {
	// Indents 0,2,4,2,0: two roots, the first with a child that has a grandchild
	// plus a second child.
	content := "- [ ] a\n  - [x] b\n    - [x] c\n  - [ ] d\n- [x] e\n"

	list := ParseTasks(content)

	require.Len(t, list.Tasks, 2)
	a := list.Tasks[0]
	assert.Equal(t, "a", a.Text)
	require.Len(t, a.Subtasks, 2)
	assert.Equal(t, "b", a.Subtasks[0].Text)
	require.Len(t, a.Subtasks[0].Subtasks, 1)
	assert.Equal(t, "c", a.Subtasks[0].Subtasks[0].Text)
	assert.Equal(t, 3, a.Subtasks[0].Subtasks[0].Line)
	assert.Equal(t, "d", a.Subtasks[1].Text)
	assert.Empty(t, a.Subtasks[1].Subtasks)

	e := list.Tasks[1]
	assert.Equal(t, "e", e.Text)
	assert.Empty(t, e.Subtasks)

	assert.Equal(t, 5, list.Progress.Total)
	assert.Equal(t, 3, list.Progress.Done)
	assert.Equal(t, 60, list.Progress.Percentage)
}

func TestParseTasks_IrregularIndent(t *testing.T) {
	// Only a strict increase nests; widths need not be consistent.
	content := "- [ ] root\n   - [ ] three\n - [ ] one\n        - [ ] eight\n"

	list := ParseTasks(content)

	require.Len(t, list.Tasks, 1)
	root := list.Tasks[0]
	require.Len(t, root.Subtasks, 2)
	assert.Equal(t, "three", root.Subtasks[0].Text)
	assert.Equal(t, "one", root.Subtasks[1].Text)
	require.Len(t, root.Subtasks[1].Subtasks, 1)
	assert.Equal(t, "eight", root.Subtasks[1].Subtasks[0].Text)
}

func TestParseTasks_ParentAndChildrenCountedIndependently(t *testing.T) {
	content := "- [x] parent\n  - [x] one\n  - [x] two\n"

	list := ParseTasks(content)

	assert.Equal(t, TaskProgress{Done: 3, Total: 3, Percentage: 100}, list.Progress)
}

func TestParseTasks_TotalsMatchCheckboxCount(t *testing.T) {
	content := `- [x] 1
    - [ ] 1.1
        - [x] 1.1.1
            - [X] 1.1.1.1
- [ ] 2
  not a task
  - [] malformed
  * [x] star bullets are not recognized
- [x] 3
`

	list := ParseTasks(content)

	assert.Equal(t, 6, list.Progress.Total)
	assert.Equal(t, 4, list.Progress.Done)
	assert.Equal(t, 67, list.Progress.Percentage)
}

func TestParseTasks_TabsAndCRLF(t *testing.T) {
	content := "- [ ] first\r\n\t- [x] nested with tab\r\n"

	list := ParseTasks(content)

	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "first", list.Tasks[0].Text)
	require.Len(t, list.Tasks[0].Subtasks, 1)
	assert.Equal(t, "nested with tab", list.Tasks[0].Subtasks[0].Text)
}

func TestNewTaskProgress(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        int
	}{
		{"zero total", 0, 0, 0},
		{"half", 1, 2, 50},
		{"rounds up at .5", 1, 8, 13},
		{"rounds down", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"complete", 7, 7, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTaskProgress(tt.done, tt.total)
			assert.Equal(t, tt.want, p.Percentage)
			assert.LessOrEqual(t, p.Done, p.Total)
		})
	}
}

func TestTaskProgress_Add(t *testing.T) {
	sum := NewTaskProgress(1, 4).Add(NewTaskProgress(2, 2))
	assert.Equal(t, TaskProgress{Done: 3, Total: 6, Percentage: 50}, sum)
}
