// Package tasktree owns the in-memory task forest: tree views, recursive
// progress and the completion rules that ripple up the ancestor chain.
package tasktree

import (
	"sort"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

// Snapshot is an immutable view of the task collection at one point in time.
// Tasks keep their insertion order, which breaks OrderIndex ties.
type Snapshot struct {
	tasks    []model.Task
	byID     map[string]int
	children map[string][]int // parent id -> task indexes, insertion order, archived included
}

// Node is one task in a tree view together with its visible sub-tasks.
type Node struct {
	Task     model.Task
	Children []Node
}

// NewSnapshot indexes tasks. The slice is copied.
func NewSnapshot(tasks []model.Task) *Snapshot {
	s := &Snapshot{tasks: make([]model.Task, 0, len(tasks))}
	for _, t := range tasks {
		s.tasks = append(s.tasks, t.Clone())
	}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.byID = make(map[string]int, len(s.tasks))
	s.children = make(map[string][]int)
	for i, t := range s.tasks {
		s.byID[t.ID] = i
		if t.ParentID != "" {
			s.children[t.ParentID] = append(s.children[t.ParentID], i)
		}
	}
}

func (s *Snapshot) clone() *Snapshot {
	return NewSnapshot(s.tasks)
}

func (s *Snapshot) Len() int { return len(s.tasks) }

// Tasks returns a copy of every task, archived ones included.
func (s *Snapshot) Tasks() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

func (s *Snapshot) Get(id string) (model.Task, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

func (s *Snapshot) ptr(id string) *model.Task {
	i, ok := s.byID[id]
	if !ok {
		return nil
	}
	return &s.tasks[i]
}

// activeChildren returns the non-archived children of id in insertion order.
func (s *Snapshot) activeChildren(id string) []*model.Task {
	var out []*model.Task
	for _, i := range s.children[id] {
		if !s.tasks[i].Archived {
			out = append(out, &s.tasks[i])
		}
	}
	return out
}

// sortedActive returns the non-archived tasks whose parent is parentID,
// ordered by OrderIndex with ties kept in insertion order.
func (s *Snapshot) sortedActive(parentID string) []*model.Task {
	var out []*model.Task
	if parentID == "" {
		for i := range s.tasks {
			if s.tasks[i].ParentID == "" && !s.tasks[i].Archived {
				out = append(out, &s.tasks[i])
			}
		}
	} else {
		out = s.activeChildren(parentID)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].OrderIndex < out[b].OrderIndex
	})
	return out
}

// Children returns the visible sub-tasks of id in display order.
func (s *Snapshot) Children(id string) []model.Task {
	return cloneAll(s.sortedActive(id))
}

// Roots returns the visible root tasks in display order.
func (s *Snapshot) Roots() []model.Task {
	return cloneAll(s.sortedActive(""))
}

func (s *Snapshot) IsLeaf(id string) bool {
	return len(s.activeChildren(id)) == 0
}

// BuildTree returns the visible forest below parentID ("" for the roots).
// Archived tasks and everything under them are left out, and so are tasks
// whose parent does not exist.
func (s *Snapshot) BuildTree(parentID string) []Node {
	seen := make(map[string]bool)
	if parentID != "" {
		seen[parentID] = true
	}
	return s.buildTree(parentID, seen)
}

func (s *Snapshot) buildTree(parentID string, seen map[string]bool) []Node {
	matches := s.sortedActive(parentID)
	nodes := make([]Node, 0, len(matches))
	for _, t := range matches {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		nodes = append(nodes, Node{
			Task:     t.Clone(),
			Children: s.buildTree(t.ID, seen),
		})
	}
	return nodes
}

// Orphans returns visible tasks whose parent is missing from the collection.
// They never show up in BuildTree until they are moved.
func (s *Snapshot) Orphans() []model.Task {
	var out []*model.Task
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.Archived || t.ParentID == "" {
			continue
		}
		if _, ok := s.byID[t.ParentID]; !ok {
			out = append(out, t)
		}
	}
	return cloneAll(out)
}

// EffectiveProgress is the 0-100 completion of id including its subtree.
// A task without visible children reports its stored progress; otherwise the
// rounded mean of its children's effective progress, rounded at every level.
// Unknown ids report 0.
func (s *Snapshot) EffectiveProgress(id string) int {
	if _, ok := s.byID[id]; !ok {
		return 0
	}
	return s.progress(id, make(map[string]bool))
}

func (s *Snapshot) progress(id string, path map[string]bool) int {
	path[id] = true
	defer delete(path, id)

	var sum, n int
	for _, c := range s.activeChildren(id) {
		if path[c.ID] {
			continue
		}
		sum += s.progress(c.ID, path)
		n++
	}
	if n == 0 {
		return s.tasks[s.byID[id]].Progress
	}
	return roundMean(sum, n)
}

// roundMean rounds sum/n half up. Both are non-negative.
func roundMean(sum, n int) int {
	return (2*sum + n) / (2 * n)
}

// DescendantIDs returns every task below id, archived ones included,
// depth first.
func (s *Snapshot) DescendantIDs(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	var walk func(string)
	walk = func(pid string) {
		for _, i := range s.children[pid] {
			cid := s.tasks[i].ID
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// AncestorIDs returns the parent chain of id, nearest first. The walk stops
// at a root, at a missing parent or when the chain loops.
func (s *Snapshot) AncestorIDs(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	cur := s.ptr(id)
	for cur != nil && cur.ParentID != "" && !seen[cur.ParentID] {
		parent := s.ptr(cur.ParentID)
		if parent == nil {
			break
		}
		seen[parent.ID] = true
		out = append(out, parent.ID)
		cur = parent
	}
	return out
}

func (s *Snapshot) isDescendant(id, candidate string) bool {
	for _, d := range s.DescendantIDs(id) {
		if d == candidate {
			return true
		}
	}
	return false
}

// nextOrderIndex is one past the largest OrderIndex among tasks sharing parentID.
func (s *Snapshot) nextOrderIndex(parentID string) int {
	max := -1
	for i := range s.tasks {
		if s.tasks[i].ParentID == parentID && s.tasks[i].OrderIndex > max {
			max = s.tasks[i].OrderIndex
		}
	}
	return max + 1
}

func (s *Snapshot) remove(ids map[string]bool) {
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if !ids[t.ID] {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.reindex()
}

func cloneAll(ts []*model.Task) []model.Task {
	out := make([]model.Task, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Clone())
	}
	return out
}
