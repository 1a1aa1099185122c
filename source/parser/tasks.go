package parser

import (
	"math"
	"regexp"
	"strings"
)

// Task is a single checkbox item from a task list. Subtasks are owned
// exclusively by their parent.
type Task struct {
	// Text is the checkbox label with surrounding whitespace removed.
	Text string `json:"text"`

	// Completed is true for "- [x]" and "- [X]" items.
	Completed bool `json:"completed"`

	// Line is the 1-based source line of the checkbox.
	Line int `json:"line"`

	// Subtasks are the items indented under this one.
	Subtasks []Task `json:"subtasks"`
}

// TaskProgress summarizes completion across every node of a task tree.
type TaskProgress struct {
	Done       int `json:"done"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewTaskProgress builds a TaskProgress, deriving the rounded percentage.
func NewTaskProgress(done, total int) TaskProgress {
	p := TaskProgress{Done: done, Total: total}
	if total > 0 {
		p.Percentage = int(math.Round(float64(done) / float64(total) * 100))
	}
	return p
}

// Add returns the sum of two progress values with the percentage recomputed.
func (p TaskProgress) Add(other TaskProgress) TaskProgress {
	return NewTaskProgress(p.Done+other.Done, p.Total+other.Total)
}

// TaskList is the result of parsing a task document.
type TaskList struct {
	Tasks    []Task       `json:"tasks"`
	Progress TaskProgress `json:"progress"`
}

// checkboxPattern matches "- [ ] text" and "- [x] text" with any leading indent.
var checkboxPattern = regexp.MustCompile(`^(\s*)-\s*\[([ xX])\]\s*(.+)$`)

// openTask is an entry on the nesting stack. The path indexes locate the task
// inside the root slice so children can be appended in place.
type openTask struct {
	path   []int
	indent int
}

// ParseTasks extracts the checkbox tree from markdown content.
//
// Nesting is inferred from leading whitespace only: a task becomes the child of
// the nearest preceding task with a strictly smaller indent. Lines that are not
// checkbox items are ignored.
func ParseTasks(content string) TaskList {
	roots := []Task{}
	var stack []openTask

	for i, line := range strings.Split(content, "\n") {
		m := checkboxPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		indent := len(m[1])
		task := Task{
			Text:      strings.TrimSpace(m[3]),
			Completed: m[2] == "x" || m[2] == "X",
			Line:      i + 1,
			Subtasks:  []Task{},
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		var path []int
		if len(stack) == 0 {
			roots = append(roots, task)
			path = []int{len(roots) - 1}
		} else {
			parentPath := stack[len(stack)-1].path
			parent := taskAt(roots, parentPath)
			parent.Subtasks = append(parent.Subtasks, task)
			path = append(append([]int{}, parentPath...), len(parent.Subtasks)-1)
		}

		stack = append(stack, openTask{path: path, indent: indent})
	}

	return TaskList{
		Tasks:    roots,
		Progress: CalculateProgress(roots),
	}
}

// taskAt resolves an index path to a pointer into the tree.
func taskAt(roots []Task, path []int) *Task {
	t := &roots[path[0]]
	for _, idx := range path[1:] {
		t = &t.Subtasks[idx]
	}
	return t
}

// CalculateProgress counts every node in the tree exactly once, parents and
// children independently.
func CalculateProgress(tasks []Task) TaskProgress {
	var done, total int
	pending := make([]*Task, 0, len(tasks))
	for i := range tasks {
		pending = append(pending, &tasks[i])
	}

	for len(pending) > 0 {
		t := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		total++
		if t.Completed {
			done++
		}
		for i := range t.Subtasks {
			pending = append(pending, &t.Subtasks[i])
		}
	}

	return NewTaskProgress(done, total)
}
