package tasktree

import "github.com/harrisonrobin/ajanda/pkg/model"

// Column is one status lane of the kanban board.
type Column struct {
	Status model.Status
	Tasks  []model.Task
}

// Kanban groups the visible root tasks by status, in board order.
func (s *Snapshot) Kanban() []Column {
	cols := make([]Column, len(model.Statuses))
	lane := make(map[model.Status]int, len(model.Statuses))
	for i, st := range model.Statuses {
		cols[i].Status = st
		lane[st] = i
	}
	for _, t := range s.sortedActive("") {
		i, ok := lane[t.Status]
		if !ok {
			continue
		}
		cols[i].Tasks = append(cols[i].Tasks, t.Clone())
	}
	return cols
}

// Row is one line of the list-with-children view.
type Row struct {
	Task         model.Task
	Depth        int
	Children     int
	DoneChildren int
	Progress     int
}

// Rows flattens the visible tree below parentID depth first.
func (s *Snapshot) Rows(parentID string) []Row {
	var rows []Row
	var walk func(nodes []Node, depth int)
	walk = func(nodes []Node, depth int) {
		for _, n := range nodes {
			r := Row{
				Task:     n.Task,
				Depth:    depth,
				Children: len(n.Children),
				Progress: s.EffectiveProgress(n.Task.ID),
			}
			for _, c := range n.Children {
				if c.Task.IsDone() {
					r.DoneChildren++
				}
			}
			rows = append(rows, r)
			walk(n.Children, depth+1)
		}
	}
	walk(s.BuildTree(parentID), 0)
	return rows
}

// Summary is the share of visible root tasks that are done, 0-100.
func (s *Snapshot) Summary() int {
	roots := s.sortedActive("")
	if len(roots) == 0 {
		return 0
	}
	done := 0
	for _, t := range roots {
		if t.IsDone() {
			done++
		}
	}
	return roundMean(done*100, len(roots))
}
