package domainage

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the registration date formats seen in RDAP and WHOIS.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// daysSince returns whole days between t and now. It fails for future dates.
func daysSince(t, now time.Time) (int, error) {
	if now.Before(t) {
		return 0, fmt.Errorf("registration date %s is in the future", t.Format(time.RFC3339))
	}
	return int(now.Sub(t).Hours() / 24), nil
}
