package orgmode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

var (
	headingRegex  = regexp.MustCompile(`^(\*+)\s+(.*?)\s*$`)
	keywordRegex  = regexp.MustCompile(`^(TODO|NEXT|STARTED|WAIT|WAITING|DONE)(?:\s+|$)(.*)$`)
	priorityRegex = regexp.MustCompile(`^\[#([A-Ca-c])\]\s*(.*)$`)
	tagsRegex     = regexp.MustCompile(`^(.*?)\s+(:[\w@#%:]+:)$`)
	cookieRegex   = regexp.MustCompile(`\s*\[\d*(?:/\d*|%)\]`)
	plannedRegex  = regexp.MustCompile(`(DEADLINE|SCHEDULED):\s*<(\d{4}-\d{2}-\d{2})[^>]*>`)
	categoryRegex = regexp.MustCompile(`^#\+(?i:category):\s*(.+)$`)
)

var keywordStatus = map[string]model.Status{
	"TODO":    model.StatusTodo,
	"NEXT":    model.StatusInProgress,
	"STARTED": model.StatusInProgress,
	"WAIT":    model.StatusWaiting,
	"WAITING": model.StatusWaiting,
	"DONE":    model.StatusDone,
}

type heading struct {
	level int
	index int // into the result, -1 for headings that are not tasks
}

// Parse reads an Org-mode outline. Headings carrying a TODO keyword become
// tasks, nested under the closest enclosing task heading. Plain headings are
// only structure. Planning lines and body text attach to the task above them.
func Parse(r io.Reader) ([]tasktree.Imported, error) {
	scanner := bufio.NewScanner(r)
	var (
		items    []tasktree.Imported
		stack    []heading
		current  = -1
		inDrawer bool
		category string
		body     = map[int][]string{}
	)

	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if m := headingRegex.FindStringSubmatch(raw); m != nil {
			level := len(m[1])
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			parent := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].index >= 0 {
					parent = stack[i].index
					break
				}
			}

			inDrawer = false
			current = -1
			if d, ok := parseHeading(m[2]); ok {
				d.ProjectID = category
				current = len(items)
				items = append(items, tasktree.Imported{Draft: d, Parent: parent})
			}
			stack = append(stack, heading{level: level, index: current})
			continue
		}

		if m := categoryRegex.FindStringSubmatch(line); m != nil && len(stack) == 0 {
			category = strings.TrimSpace(m[1])
			continue
		}
		if current < 0 {
			continue
		}

		switch {
		case line == ":PROPERTIES:" || line == ":LOGBOOK:":
			inDrawer = true
			continue
		case line == ":END:":
			inDrawer = false
			continue
		case inDrawer:
			continue
		}

		if planned := plannedRegex.FindAllStringSubmatch(line, -1); planned != nil {
			for _, p := range planned {
				date, err := model.ParseDate(p[2])
				if err != nil {
					return nil, err
				}
				if p[1] == "DEADLINE" {
					items[current].Draft.DueDate = date
				} else {
					items[current].Draft.StartDate = date
				}
			}
			continue
		}
		if line != "" || len(body[current]) > 0 {
			body[current] = append(body[current], line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for i, lines := range body {
		items[i].Draft.Description = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return items, nil
}

// parseHeading splits "TODO [#A] Title [1/2] :tag1:tag2:".
func parseHeading(text string) (tasktree.Draft, bool) {
	m := keywordRegex.FindStringSubmatch(text)
	if m == nil {
		return tasktree.Draft{}, false
	}
	d := tasktree.Draft{Status: keywordStatus[m[1]]}
	rest := m[2]

	if p := priorityRegex.FindStringSubmatch(rest); p != nil {
		// A, B and C always parse.
		d.Priority, _ = model.ParsePriority(p[1])
		rest = p[2]
	}
	if t := tagsRegex.FindStringSubmatch(rest); t != nil {
		rest = t[1]
		for _, tag := range strings.Split(strings.Trim(t[2], ":"), ":") {
			if tag != "" {
				d.Tags = append(d.Tags, tag)
			}
		}
	}
	d.Title = strings.TrimSpace(cookieRegex.ReplaceAllString(rest, ""))
	if d.Title == "" {
		return tasktree.Draft{}, false
	}
	return d, true
}

// ParseFiles parses several files into one batch. Each file's tasks keep
// their own nesting; the top-level tasks of every file land at the batch root.
func ParseFiles(paths []string) ([]tasktree.Imported, error) {
	var all []tasktree.Imported
	for _, path := range paths {
		items, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		offset := len(all)
		for _, it := range items {
			if it.Parent >= 0 {
				it.Parent += offset
			}
			all = append(all, it)
		}
	}
	return all, nil
}

func parseFile(path string) ([]tasktree.Imported, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}
