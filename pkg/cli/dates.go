package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDate accepts 2006-01-02 or natural language such as "tomorrow",
// "next friday" or "in 3 days". "none" clears the date.
func parseDate(s string, now time.Time) (model.Date, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "clear":
		return model.Date{}, nil
	}
	if d, err := model.ParseDate(s); err == nil {
		return d, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return model.Date{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return model.Date{}, fmt.Errorf("could not understand date %q", s)
	}
	return model.DateOf(r.Time), nil
}
