package extract

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// The dispatch system stamps dates in Eastern time without a zone
// marker. Timestamps are interpreted as America/New_York and stored
// UTC; display-side conversion is the consumer's problem.
var (
	easternOnce sync.Once
	easternLoc  *time.Location
)

func eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("EST", -5*60*60)
		}
		easternLoc = loc
	})
	return easternLoc
}

// Layouts observed across historical dispatch formats, most common first.
var dateLayouts = []string{
	"Jan 2 2006 3:04 PM",
	"Jan 2 2006 3:04PM",
	"Jan 2 2006 15:04",
	"January 2 2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02 15:04:05",
}

var innerSpace = regexp.MustCompile(`\s+`)

// parseLenient tries each known layout against the whitespace-normalized
// input, returning the first hit converted to UTC.
func parseLenient(s string) (time.Time, bool) {
	s = strings.TrimSpace(innerSpace.ReplaceAllString(s, " "))

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, eastern())
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
