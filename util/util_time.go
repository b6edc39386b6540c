package util

import (
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Datetime related utility functions. General convention - suffix Z if utc based.
const (
	DATETIME_FORMAT_YYYYMMDD_HYPHEN string = "2006-01-02"
	DATETIME_FORMAT_ISO8601         string = "2006-01-02T15:04:05"
	DATETIME_FORMAT_DB              string = "2006-01-02 15:04:05"
)

const SecsInADay int64 = 24 * 60 * 60

// ParseEventTimestampZ parses a raw event log timestamp as UTC with second
// precision. Fractional seconds on the input are accepted and truncated.
// Both the T-separated and the space-separated variants occur in the logs.
func ParseEventTimestampZ(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(value, "Z")

	layout := DATETIME_FORMAT_ISO8601
	if !strings.Contains(value, "T") {
		layout = DATETIME_FORMAT_DB
	}

	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(time.Second), nil
}

// GetDateOnlyFromTimeZ returns the calendar date in YYYY-MM-DD for an
// already UTC normalized time.
func GetDateOnlyFromTimeZ(t time.Time) string {
	return t.UTC().Format(DATETIME_FORMAT_YYYYMMDD_HYPHEN)
}

// GetBeginningOfDayTimeZ truncates a time to the beginning of its UTC day.
func GetBeginningOfDayTimeZ(t time.Time) time.Time {
	return now.New(t.UTC()).BeginningOfDay()
}

// TimeNowZ Return current time in UTC. Should be used everywhere to avoid local timezone.
func TimeNowZ() time.Time {
	return time.Now().UTC()
}

// TimeNowUnix Returns current epoch time.
func TimeNowUnix() int64 {
	return TimeNowZ().Unix()
}
