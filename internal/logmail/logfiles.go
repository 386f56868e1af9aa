package logmail

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Yesterday returns the calendar day before now in loc, formatted YYYY-MM-DD.
// The arithmetic is done on the date, anchored at noon, so DST transitions and
// runs close to midnight never skip or repeat a day.
func Yesterday(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-1, 12, 0, 0, 0, loc).Format(dateLayout)
}

// Pattern returns the glob matching fatal-error logs written on date.
func Pattern(date string) string {
	return "fatal-errors-" + date + "*.log"
}

// FindLogs lists the fatal-error logs for date directly inside dir.
func FindLogs(dir, date string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, Pattern(date)))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Subject is the mail subject for the logs of date on site.
func Subject(site, date string) string {
	return fmt.Sprintf("[%s] WooCommerce Fatal Errors Log for %s", site, date)
}
