package google

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/ajanda/pkg/auth"
	"github.com/harrisonrobin/ajanda/pkg/colors"
	"github.com/harrisonrobin/ajanda/pkg/index"
)

// NewClient authorizes with the token stored in dir and binds to the
// calendar called calendarName.
func NewClient(ctx context.Context, calendarName, dir string, idx *index.EventIndex, cc *colors.ColorCache, logger *slog.Logger) (*CalendarClient, error) {
	srv, err := auth.GetCalendarService(ctx, dir, logger)
	if err != nil {
		return nil, err
	}
	calendarID, err := FindCalendarID(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, cc, logger), nil
}

// FindCalendarID returns the id of the first calendar whose title is name.
func FindCalendarID(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
