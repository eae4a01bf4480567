package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

// Styles contains lipgloss styles for terminal output.
type Styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	ID       lipgloss.Style
	Done     lipgloss.Style
	Overdue  lipgloss.Style
	Soon     lipgloss.Style
	High     lipgloss.Style
	Column   lipgloss.Style
	Progress lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		ID: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Done: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Strikethrough(true),
		Overdue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Soon: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		High: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(30),
		Progress: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}

var statusMarks = map[model.Status]string{
	model.StatusTodo:       "[ ]",
	model.StatusInProgress: "[~]",
	model.StatusWaiting:    "[w]",
	model.StatusDone:       "[x]",
}

type renderer struct {
	styles Styles
	now    time.Time
}

func newRenderer(now time.Time) *renderer {
	return &renderer{styles: DefaultStyles(), now: now}
}

func progressBar(pct, width int) string {
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (r *renderer) due(d model.Date) string {
	if d.IsZero() {
		return ""
	}
	label := "due " + d.String()
	switch tasktree.ClassifyDue(d, r.now) {
	case tasktree.DueOverdue:
		return r.styles.Overdue.Render(label + " (overdue)")
	case tasktree.DueToday:
		return r.styles.Soon.Render("due today")
	case tasktree.DueTomorrow:
		return r.styles.Soon.Render("due tomorrow")
	}
	return r.styles.Muted.Render(label)
}

// line renders one task with its effective progress.
func (r *renderer) line(t model.Task, progress int) string {
	title := t.Title
	if t.IsDone() {
		title = r.styles.Done.Render(title)
	} else if t.Priority == model.PriorityHigh {
		title = r.styles.High.Render(title)
	}

	parts := []string{r.styles.ID.Render(shortID(t.ID)), statusMarks[t.Status], title}
	if progress > 0 && progress < 100 {
		parts = append(parts, r.styles.Progress.Render(fmt.Sprintf("%d%%", progress)))
	}
	if d := r.due(t.DueDate); d != "" && !t.IsDone() {
		parts = append(parts, d)
	}
	for _, tag := range t.Tags {
		parts = append(parts, r.styles.Muted.Render("#"+tag))
	}
	return strings.Join(parts, " ")
}

func (r *renderer) tree(snap *tasktree.Snapshot) string {
	var b strings.Builder
	var walk func(nodes []tasktree.Node, prefix string)
	walk = func(nodes []tasktree.Node, prefix string) {
		for i, n := range nodes {
			branch, next := "├── ", "│   "
			if i == len(nodes)-1 {
				branch, next = "└── ", "    "
			}
			b.WriteString(prefix + branch + r.line(n.Task, snap.EffectiveProgress(n.Task.ID)) + "\n")
			walk(n.Children, prefix+next)
		}
	}
	walk(snap.BuildTree(""), "")
	return r.withSummary(snap, b.String())
}

func (r *renderer) list(snap *tasktree.Snapshot) string {
	var b strings.Builder
	for _, row := range snap.Rows("") {
		line := strings.Repeat("  ", row.Depth) + r.line(row.Task, row.Progress)
		if row.Children > 0 {
			line += r.styles.Muted.Render(fmt.Sprintf(" (%d/%d)", row.DoneChildren, row.Children))
		}
		b.WriteString(line + "\n")
	}
	return r.withSummary(snap, b.String())
}

func (r *renderer) kanban(snap *tasktree.Snapshot) string {
	cols := snap.Kanban()
	boxes := make([]string, 0, len(cols))
	for _, c := range cols {
		var b strings.Builder
		b.WriteString(r.styles.Title.Render(fmt.Sprintf("%s (%d)", c.Status, len(c.Tasks))))
		for _, t := range c.Tasks {
			b.WriteString("\n" + r.styles.ID.Render(shortID(t.ID)) + " " + t.Title)
			if p := snap.EffectiveProgress(t.ID); p > 0 && p < 100 {
				b.WriteString(" " + r.styles.Progress.Render(fmt.Sprintf("%d%%", p)))
			}
		}
		boxes = append(boxes, r.styles.Column.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...) + "\n"
}

func (r *renderer) withSummary(snap *tasktree.Snapshot, body string) string {
	if body == "" {
		return r.styles.Muted.Render("No tasks.") + "\n"
	}
	pct := snap.Summary()
	return body + "\n" + r.styles.Muted.Render(fmt.Sprintf("%s %d%% of top-level tasks done", progressBar(pct, 20), pct)) + "\n"
}

func (r *renderer) archived(snap *tasktree.Snapshot) string {
	var b strings.Builder
	for _, t := range snap.Tasks() {
		if t.Archived {
			b.WriteString(r.line(t, snap.EffectiveProgress(t.ID)) + "\n")
		}
	}
	if b.Len() == 0 {
		return r.styles.Muted.Render("No archived tasks.") + "\n"
	}
	return b.String()
}

// detail renders everything known about one task.
func (r *renderer) detail(snap *tasktree.Snapshot, t model.Task) string {
	var b strings.Builder
	b.WriteString(r.styles.Title.Render(t.Title) + "\n")

	var path []string
	ancestors := snap.AncestorIDs(t.ID)
	for i := len(ancestors) - 1; i >= 0; i-- {
		if a, ok := snap.Get(ancestors[i]); ok {
			path = append(path, a.Title)
		}
	}
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", r.styles.Muted.Render(fmt.Sprintf("%-10s", name+":")), value)
		}
	}
	field("ID", t.ID)
	field("Path", strings.Join(path, " / "))
	field("Status", string(t.Status))
	field("Priority", string(t.Priority))
	progress := snap.EffectiveProgress(t.ID)
	field("Progress", fmt.Sprintf("%s %d%%", progressBar(progress, 20), progress))
	field("Project", t.ProjectID)
	field("Start", t.StartDate.String())
	field("Due", r.due(t.DueDate))
	if len(t.Tags) > 0 {
		field("Tags", strings.Join(t.Tags, ", "))
	}
	if t.EstimatedHours > 0 {
		field("Estimate", fmt.Sprintf("%gh", t.EstimatedHours))
	}
	if t.ActualHours > 0 {
		field("Spent", fmt.Sprintf("%gh", t.ActualHours))
	}
	if t.RepeatRule != "" && t.RepeatRule != model.RepeatNone {
		field("Repeats", string(t.RepeatRule))
	}
	if t.Archived {
		field("Archived", "yes")
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}

	if kids := snap.Children(t.ID); len(kids) > 0 {
		b.WriteString("\n" + r.styles.Title.Render("Sub-tasks") + "\n")
		for _, k := range kids {
			b.WriteString("  " + r.line(k, snap.EffectiveProgress(k.ID)) + "\n")
		}
	}
	return b.String()
}

// agenda renders overdue, today and upcoming sections.
func (r *renderer) agenda(snap *tasktree.Snapshot, days int) string {
	var b strings.Builder
	section := func(title string, tasks []model.Task) {
		if len(tasks) == 0 {
			return
		}
		b.WriteString(r.styles.Title.Render(title) + "\n")
		for _, t := range tasks {
			b.WriteString("  " + r.line(t, snap.EffectiveProgress(t.ID)) + "\n")
		}
		b.WriteString("\n")
	}
	section("Overdue", snap.Overdue(r.now))
	section("Today", snap.Today(r.now))
	section(fmt.Sprintf("Next %d days", days), snap.Upcoming(r.now, days))
	if b.Len() == 0 {
		return r.styles.Muted.Render("Nothing scheduled.") + "\n"
	}
	return b.String()
}
